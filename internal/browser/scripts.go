package browser

// bindingName is the page-side function that reports activity to the daemon.
const bindingName = "__wppilotNotify"

// watchScript installs DOM, visibility, focus and hash listeners once per
// document. Mutation bursts are forwarded as they come; the Go side debounces.
const watchScript = `(() => {
  if (window.__wppilotWatching) return true;
  window.__wppilotWatching = true;
  const send = (reason) => {
    try { window.__wppilotNotify(reason); } catch (e) {}
  };
  const start = () => {
    const root = document.body || document.documentElement;
    if (!root) return;
    new MutationObserver(() => send("mutation")).observe(root, {
      childList: true, subtree: true, characterData: true, attributes: true,
      attributeFilter: ["data-id", "title", "aria-label", "data-ref"],
    });
  };
  if (document.readyState === "loading") {
    document.addEventListener("DOMContentLoaded", start, { once: true });
  } else {
    start();
  }
  document.addEventListener("visibilitychange", () => send("visibility"));
  window.addEventListener("focus", () => send("focus"));
  window.addEventListener("hashchange", () => send("hashchange"));
  return true;
})()`

const localStorageScript = `(key) => {
  try { return window.localStorage.getItem(key); } catch (e) { return null; }
}`

const insertTextScript = `(el, text) => {
  el.focus();
  try { return document.execCommand("insertText", false, text); } catch (e) { return false; }
}`

const replaceTextScript = `(el, text) => {
  el.focus();
  el.textContent = text;
  el.dispatchEvent(new InputEvent("input", { bubbles: true, inputType: "insertText", data: text }));
  return true;
}`

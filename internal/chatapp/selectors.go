package chatapp

// DOM markers of the chat web app. Lists are tried in order.

type strategy struct {
	Name     string
	Selector string
}

var messageStrategies = []strategy{
	{Name: "message-container", Selector: "#main .message-in, #main .message-out"},
	{Name: "row", Selector: `#main div[role="row"]`},
	{Name: "data-id", Selector: "#main [data-id]"},
}

var inboxRowSelectors = []string{
	`#pane-side [role="listitem"]`,
	`#pane-side [role="row"]`,
}

const (
	selPane      = "#pane-side"
	selMain      = "#main"
	selLoginQR   = "div[data-ref]"
	selStartup   = `#startup, [data-testid="startup"], progress`
	selPageTitle = "title"

	selHeaderTitle    = `#main header [data-testid="conversation-info-header-chat-title"], #main header span[dir="auto"][title], #main header span[dir="auto"]`
	selHeaderGroupIcn = `#main header span[data-icon="default-group"], #main header span[data-icon="default-group-refreshed"]`

	selComposer = `#main footer div[contenteditable="true"]`

	// Only enabled buttons count as ready.
	selSendButton = `#main footer button:not([disabled]):not([aria-disabled="true"]):has(span[data-icon="send"]), ` +
		`#main footer button:not([disabled]):not([aria-disabled="true"]):has(span[data-icon^="wds-ic-send"]), ` +
		`#main footer button[aria-label="Send"]:not([disabled]):not([aria-disabled="true"]), ` +
		`#main footer button[aria-label="Enviar"]:not([disabled]):not([aria-disabled="true"])`

	selRowMenuButton = `span[data-icon="down"], span[data-icon="down-context"], span[data-icon="chevron-down-alt"], button[aria-label="Open chat context menu"], button[aria-label="Abrir el menú contextual del chat"]`
	selMenuItems     = `[role="application"] li, [role="menu"] li, [role="menuitem"]`

	selInboxTitle   = "span[title]"
	selInboxPreview = `[data-testid="last-msg-status"], [data-testid="cell-frame-secondary"] span[title]`
	selInboxUnread  = `[aria-label*="unread"], [aria-label*="no leído"], [aria-label*="sin leer"]`
	selGroupIcon    = `span[data-icon="default-group"], span[data-icon="default-group-refreshed"]`
	selUserIcon     = `span[data-icon="default-user"], span[data-icon="default-contact-refreshed"]`

	selOutgoing   = ".message-out"
	selIncoming   = ".message-in"
	selPrePlain   = "[data-pre-plain-text]"
	selMsgMeta    = `[data-testid="msg-meta"]`
	selTextNodes  = `span.selectable-text, [data-testid="selectable-text"]`
	selQuoted     = `[data-testid="quoted-message"], [aria-label="Quoted message"], [aria-label="Mensaje citado"]`
	selTranscript = `[data-testid="ptt-transcript"], [data-testid="audio-transcript"], [aria-label^="Transcript"], [aria-label^="Transcripción"]`
	selDuration   = `[data-testid="ptt-duration"], [data-testid="audio-duration"], [data-testid="video-duration"]`
	selDocName    = `[data-testid="document-name"], [data-testid="document-title"]`
	selImageText  = `[data-testid="image-text"]`

	markAudio    = `audio, [data-testid="audio-player"], span[data-icon="audio-play"], span[data-icon="ptt-play"], span[data-icon="audio-download"], button[aria-label="Play voice message"], button[aria-label="Reproducir mensaje de voz"]`
	markSticker  = `[data-testid="sticker"], img[alt="Sticker"], img[alt="sticker"]`
	markImage    = `[data-testid="image-thumb"], img[src^="blob:"], [aria-label="Open picture"], [aria-label="Abrir imagen"]`
	markDocument = `[data-testid="document-thumb"], span[data-icon="document"], span[data-icon^="document-"], [title^="Download "], [title^="Descargar "]`
	markVideo    = `video, [data-testid="video-thumb"], span[data-icon="media-play"], span[data-icon="video-pip"]`
	markCaption  = `[data-testid="media-caption"], [data-testid="caption"]`
)

// Storage keys holding the logged-in account id.
var myNumberKeys = []string{"last-wid-md", "last-wid"}

package chatapp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mixedConversation = `<html><body><div id="main">
<header><span dir="auto" title="+34 600 111 222">+34 600 111 222</span></header>
<div class="copyable-area">
<div role="row"><span>TODAY</span></div>
<div class="message-in" data-id="false_34600111222@c.us_T1">
  <div data-pre-plain-text="[09:58, 17/10/2026] Ana: "><span class="selectable-text"><span>buenos dias</span></span></div>
</div>
<div class="message-in">
  <div data-testid="quoted-message"><span class="selectable-text">old quoted text</span></div>
  <div data-pre-plain-text="[09:59, 17/10/2026] Ana: "><span class="selectable-text">reply body</span></div>
</div>
<div class="message-in" data-id="false_34600111222@c.us_AU1">
  <button aria-label="Play voice message"><span data-icon="audio-play"></span></button>
  <div data-testid="ptt-duration">0:42</div>
  <div data-testid="ptt-transcript">Transcript</div>
  <div data-testid="ptt-transcript">nos vemos luego</div>
  <div data-testid="msg-meta"><span>10:02</span></div>
</div>
<div class="message-in" data-id="false_34600111222@c.us_IM1">
  <div data-testid="image-thumb"><img src="blob:https://web.whatsapp.com/x" alt="Beach at sunset"></div>
  <div data-testid="msg-meta"><span>10:03</span></div>
</div>
<div class="message-out" data-id="true_34600111222@c.us_DOC1">
  <span data-icon="document"></span>
  <div title="Download &#34;factura.pdf&#34;"></div>
  <div data-testid="msg-meta"><span>10:04</span></div>
</div>
<div class="message-in" data-id="false_34600111222@c.us_ST1">
  <img data-testid="sticker" alt="Sticker">
</div>
<div class="message-out">
  <div data-pre-plain-text="[10:05, 17/10/2026] Me: "><span class="selectable-text">ok</span></div>
</div>
<div class="message-out">
  <div data-pre-plain-text="[10:05, 17/10/2026] Me: "><span class="selectable-text">ok</span></div>
</div>
</div></div></body></html>`

func TestScrapeMessagesKindsAndEnrichment(t *testing.T) {
	msgs, strategy := ScrapeMessages(docOf(t, mixedConversation), 0)
	require.Equal(t, "message-container", strategy)
	require.Len(t, msgs, 8)

	assert.Equal(t, "buenos dias", msgs[0].Text)
	assert.Equal(t, "09:58, 17/10/2026", msgs[0].Timestamp)
	assert.Equal(t, RoleContact, msgs[0].Role)
	assert.Equal(t, KindText, msgs[0].Kind)

	assert.Equal(t, "reply body", msgs[1].Text, "quoted text is not part of the body")
	assert.True(t, strings.HasPrefix(msgs[1].ID, "h_"))

	audio := msgs[2]
	assert.Equal(t, KindAudio, audio.Kind)
	require.NotNil(t, audio.Enriched)
	assert.Equal(t, "0:42", audio.Enriched.AudioDuration)
	assert.Equal(t, "nos vemos luego", audio.Enriched.Transcript)
	assert.Equal(t, "Audio (0:42): nos vemos luego", audio.Text)

	image := msgs[3]
	assert.Equal(t, KindImage, image.Kind)
	assert.Equal(t, "Imagen: Beach at sunset", image.Text)

	doc := msgs[4]
	assert.Equal(t, KindDocument, doc.Kind)
	assert.Equal(t, RoleMe, doc.Role)
	assert.Equal(t, "Documento: factura.pdf", doc.Text)

	assert.Equal(t, KindSticker, msgs[5].Kind)
	assert.Equal(t, "Sticker", msgs[5].Text)

	assert.Equal(t, RoleMe, msgs[6].Role)
	assert.NotEqual(t, msgs[6].ID, msgs[7].ID, "identical rows at different positions get distinct ids")
}

func TestScrapeMessagesIDsAreStable(t *testing.T) {
	first, _ := ScrapeMessages(docOf(t, mixedConversation), 0)
	second, _ := ScrapeMessages(docOf(t, mixedConversation), 0)
	require.Equal(t, messageIDs(first), messageIDs(second))
	assert.Equal(t, "false_34600111222@c.us_T1", first[0].ID)
}

func TestScrapeMessagesKeepsTail(t *testing.T) {
	msgs, _ := ScrapeMessages(docOf(t, mixedConversation), 3)
	require.Len(t, msgs, 3)
	assert.Equal(t, "false_34600111222@c.us_ST1", msgs[0].ID)
}

func TestScrapeMessagesFallsBackToRows(t *testing.T) {
	html := `<div id="main"><div role="row"><div data-id="false_1@c.us_X"><span class="selectable-text">row text</span></div></div></div>`
	msgs, strategy := ScrapeMessages(docOf(t, html), 0)
	require.Equal(t, "row", strategy)
	require.Len(t, msgs, 1)
	assert.Equal(t, "false_1@c.us_X", msgs[0].ID)
	assert.Equal(t, "row text", msgs[0].Text)
}

func TestScrapeMessagesRowsDropChrome(t *testing.T) {
	html := `<div id="main"><div class="copyable-area">
<div role="row"><div><span dir="auto">TODAY</span></div></div>
<div role="row"><div><span data-icon="lock-small"></span><span>Messages and calls are end-to-end encrypted. No one outside of this chat can read or listen to them.</span></div></div>
<div role="row"><div data-pre-plain-text="[09:58, 17/10/2026] Ana: "><span class="selectable-text">hola</span></div></div>
<div role="row"><div>
  <div data-testid="image-thumb"><img alt="Harbour"></div>
  <div data-testid="msg-meta"><span>10:03</span></div>
</div></div>
</div></div>`
	msgs, strategy := ScrapeMessages(docOf(t, html), 0)
	require.Equal(t, "row", strategy)
	require.Len(t, msgs, 2)

	assert.Equal(t, "hola", msgs[0].Text)
	assert.Equal(t, "09:58, 17/10/2026", msgs[0].Timestamp)

	media := msgs[1]
	assert.Equal(t, KindImage, media.Kind)
	assert.Equal(t, "Imagen: Harbour", media.Text)
	assert.Equal(t, "10:03", media.Timestamp)
	assert.True(t, strings.HasPrefix(media.ID, "h_"))

	for _, m := range msgs {
		assert.NotContains(t, m.Text, "TODAY")
		assert.NotContains(t, m.Text, "encrypted")
	}
}

func TestScrapeMessagesEmpty(t *testing.T) {
	msgs, strategy := ScrapeMessages(docOf(t, `<div id="pane-side"></div>`), 0)
	assert.Empty(t, msgs)
	assert.Empty(t, strategy)
}

func TestReadCurrentChat(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		channelID string
		phone     string
		group     bool
	}{
		{
			name:      "jid from message ids",
			html:      mixedConversation,
			channelID: "jid:34600111222@c.us",
			phone:     "34600111222",
		},
		{
			name:      "phone from title",
			html:      `<div id="main"><header><span dir="auto" title="+34 600 999 000"></span></header></div>`,
			channelID: "phone:34600999000",
			phone:     "34600999000",
		},
		{
			name:      "title only",
			html:      `<div id="main"><header><span dir="auto" title="Señora Álvarez"></span></header></div>`,
			channelID: "title:senora alvarez",
		},
		{
			name:      "group",
			html:      `<div id="main"><header><span data-icon="default-group"></span><span dir="auto" title="Familia"></span></header><div class="message-in" data-id="false_120363025555555555@g.us_F1_34600111222@c.us"><span class="selectable-text">hi</span></div></div>`,
			channelID: "jid:120363025555555555@g.us",
			group:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := docOf(t, tt.html)
			msgs, _ := ScrapeMessages(doc, 0)
			c := readCurrentChat(doc, msgs)
			require.NotNil(t, c)
			assert.Equal(t, tt.channelID, c.ChannelID)
			assert.Equal(t, tt.phone, c.Phone)
			assert.Equal(t, tt.group, c.IsGroup)
			assert.NotEmpty(t, c.ChatKey)
		})
	}

	assert.Nil(t, readCurrentChat(docOf(t, `<div id="pane-side"></div>`), nil))
}

func TestParseMyNumber(t *testing.T) {
	assert.Equal(t, "34600111222", parseMyNumber(`"34600111222:12@c.us"`))
	assert.Equal(t, "34600111222", parseMyNumber(`34600111222@s.whatsapp.net`))
	assert.Equal(t, "", parseMyNumber(""))
}

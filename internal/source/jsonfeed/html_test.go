package jsonfeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain text", "no markup here", "no markup here"},
		{"tags removed", "<p>Hello <b>world</b></p>", "Hello world"},
		{"entities decoded", "fish &amp; chips &lt;tasty&gt; &quot;indeed&quot; it&#39;s", `fish & chips <tasty> "indeed" it's`},
		{"nbsp to space", "a&nbsp;b", "a b"},
		{"whitespace collapsed", "  line one\n\n\tline   two  ", "line one line two"},
		{"mixed", "<div>\n  <h1>Title</h1>\n  <p>Body &amp; more</p>\n</div>", "Title Body & more"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripHTML(tc.in))
		})
	}
}

func TestExtractTagSources(t *testing.T) {
	html := `<p><img src="https://a.example/1.jpg" alt="x"><IMG SRC='https://a.example/2.png'></p>` +
		`<video src="https://a.example/v.mp4" controls></video>`

	assert.Equal(t,
		[]string{"https://a.example/1.jpg", "https://a.example/2.png"},
		extractTagSources(html, imgTagSrc),
	)
	assert.Equal(t,
		[]string{"https://a.example/v.mp4"},
		extractTagSources(html, videoTagSrc),
	)
	assert.Empty(t, extractTagSources("", imgTagSrc))
	assert.Empty(t, extractTagSources("<p>no media</p>", videoTagSrc))
}

package web

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/mikequentel/memeboard/internal/feed"
)

var pageTmpl = template.Must(template.New("feed").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Meme Feed</title>
</head>
<body>
<div class="feed-container" data-signed-in="{{.SignedIn}}">
  <h1>Meme Feed</h1>
  {{- if not .Memes}}
  <div class="feed-empty">No memes yet. Be the first to post one!</div>
  {{- else}}
  <div class="meme-grid">
    {{- range .Memes}}
    <div class="meme-card" data-id="{{.ID}}">
      <img src="{{.Image}}" alt="{{if .Text}}{{.Text}}{{else}}Meme{{end}}" class="meme-image">
      {{- if .Text}}
      <div class="meme-text">{{.Text}}</div>
      {{- end}}
      <div class="meme-footer">
        <form method="post" action="/api/memes/{{.ID}}/upvote">
          <button class="upvote-button{{if .HasVoted}} voted{{end}}"{{if not $.SignedIn}} disabled{{end}}>&#128077; <span class="upvote-count">{{.UpvoteCount}}</span></button>
        </form>
        <div class="meme-date">{{.Date}}</div>
      </div>
    </div>
    {{- end}}
  </div>
  {{- end}}
</div>
<script>
new EventSource("/api/memes/events").addEventListener("change", () => location.reload());
</script>
</body>
</html>
`))

type pageMeme struct {
	feed.Item
	Image template.URL
	Date  string
}

type pageData struct {
	SignedIn bool
	Memes    []pageMeme
}

// imageURL passes image URLs the service produced itself. Anything else is
// left to html/template's URL filter.
func imageURL(u string) template.URL {
	switch {
	case strings.HasPrefix(u, "data:image/png;base64,"),
		strings.HasPrefix(u, "http://"),
		strings.HasPrefix(u, "https://"),
		strings.HasPrefix(u, "/"):
		return template.URL(u)
	}
	return template.URL("#")
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	viewer := s.viewerID(r)
	items, err := s.feed.List(r.Context(), viewer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data := pageData{SignedIn: viewer != "", Memes: make([]pageMeme, len(items))}
	for i, it := range items {
		data.Memes[i] = pageMeme{
			Item:  it,
			Image: imageURL(it.ImageURL),
			Date:  time.UnixMilli(it.CreatedAt).UTC().Format("Jan 2, 2006"),
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, data); err != nil {
		s.log.Error("render feed page", "err", err)
	}
}

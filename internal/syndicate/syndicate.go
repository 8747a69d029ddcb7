// Package syndicate cross-posts published memes to X.
package syndicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dghubble/go-twitter/twitter"
	"github.com/dghubble/oauth1"
)

const (
	uploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	tweetURL  = "https://api.twitter.com/2/tweets"

	maxStatusRunes = 280
	ellipsis       = "…"
	hashtags       = "#meme #memeboard"
)

// --- v2 create tweet ---

type TweetReq struct {
	Text  string      `json:"text"`
	Media *TweetMedia `json:"media,omitempty"`
}
type TweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}
type TweetResp struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// --- v1.1 media/upload (simple upload) ---

type MediaUploadResp struct {
	MediaID       int64  `json:"media_id"`
	MediaIDString string `json:"media_id_string"`
}

type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

func (c Credentials) Empty() bool {
	return c.ConsumerKey == "" && c.ConsumerSecret == "" && c.AccessToken == "" && c.AccessSecret == ""
}

// Missing lists the names of unset credential fields.
func (c Credentials) Missing() []string {
	var out []string
	for _, f := range [...]struct{ name, val string }{
		{"X_CONSUMER_KEY", c.ConsumerKey},
		{"X_CONSUMER_SECRET", c.ConsumerSecret},
		{"X_ACCESS_TOKEN", c.AccessToken},
		{"X_ACCESS_SECRET", c.AccessSecret},
	} {
		if f.val == "" {
			out = append(out, f.name)
		}
	}
	return out
}

// Poster posts images with a status line.
type Poster struct {
	client  *http.Client
	twitter *twitter.Client
	dryRun  bool
	log     *slog.Logger
}

// New returns a Poster signing requests with creds.
func New(creds Credentials, dryRun bool, log *slog.Logger) *Poster {
	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	return NewWithClient(config.Client(context.Background(), token), dryRun, log)
}

// NewWithClient uses an already signed HTTP client.
func NewWithClient(client *http.Client, dryRun bool, log *slog.Logger) *Poster {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Poster{client: client, twitter: twitter.NewClient(client), dryRun: dryRun, log: log}
}

// Verify checks the credentials and returns the account's screen name.
func (p *Poster) Verify() (string, error) {
	user, _, err := p.twitter.Accounts.VerifyCredentials(&twitter.AccountVerifyParams{
		SkipStatus: twitter.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("verify X credentials: %w", err)
	}
	return user.ScreenName, nil
}

// Post uploads png and posts it with a status built from text. It returns
// the tweet ID, empty in dry-run mode.
func (p *Poster) Post(ctx context.Context, text string, png []byte) (string, error) {
	status := FormatStatus(text)
	if p.dryRun {
		p.log.Info("dry run: not posting to X", "status", status, "bytes", len(png))
		return "", nil
	}
	mediaID, err := p.uploadMedia(ctx, png)
	if err != nil {
		return "", err
	}
	id, err := p.createTweet(ctx, status, []string{mediaID})
	if err != nil {
		return "", err
	}
	p.log.Info("posted to X", "tweet", id)
	return id, nil
}

func (p *Poster) uploadMedia(ctx context.Context, png []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("media", "meme.png")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(png); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", errors.New(diagnoseHTTPError(resp, b, "POST /1.1/media/upload.json"))
	}

	var mr MediaUploadResp
	if err := json.Unmarshal(b, &mr); err != nil {
		return "", fmt.Errorf("decode media upload: %w", err)
	}
	if mr.MediaIDString != "" {
		return mr.MediaIDString, nil
	}
	if mr.MediaID != 0 {
		return strconv.FormatInt(mr.MediaID, 10), nil
	}
	return "", errors.New("media upload: missing media_id in response")
}

func (p *Poster) createTweet(ctx context.Context, text string, mediaIDs []string) (string, error) {
	tr := TweetReq{Text: text}
	if len(mediaIDs) > 0 {
		tr.Media = &TweetMedia{MediaIDs: mediaIDs}
	}
	payload, err := json.Marshal(tr)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tweetURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", errors.New(diagnoseHTTPError(resp, b, "POST /2/tweets"))
	}
	var out TweetResp
	if err := json.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("decode tweet: %w", err)
	}
	return out.Data.ID, nil
}

// diagnoseHTTPError renders an X API error body, v2 or v1.1 shaped.
func diagnoseHTTPError(resp *http.Response, body []byte, endpoint string) string {
	var v2 struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Type   string `json:"type"`
	}
	if json.Unmarshal(body, &v2) == nil && (v2.Title != "" || v2.Detail != "") {
		msg := fmt.Sprintf("%s: %d %s: %s", endpoint, resp.StatusCode, v2.Title, v2.Detail)
		if lvl := resp.Header.Get("X-Access-Level"); lvl != "" {
			msg += " (access level " + lvl + ")"
		}
		return msg
	}
	var v1 struct {
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &v1) == nil && len(v1.Errors) > 0 {
		parts := make([]string, 0, len(v1.Errors))
		for _, e := range v1.Errors {
			parts = append(parts, fmt.Sprintf("code %d: %s", e.Code, e.Message))
		}
		return fmt.Sprintf("%s: %d %s", endpoint, resp.StatusCode, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("%s: %d %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
}

func runeLen(s string) int { return len([]rune(s)) }

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// FormatStatus joins the meme lines into one status with hashtags,
// truncating the text with an ellipsis to stay within 280 runes.
func FormatStatus(text string) string {
	body := strings.Join(strings.Fields(strings.ReplaceAll(text, "\n", " ")), " ")
	tail := " " + hashtags
	if body == "" {
		return strings.TrimSpace(tail)
	}
	if runeLen(body)+runeLen(tail) <= maxStatusRunes {
		return body + tail
	}
	avail := maxStatusRunes - runeLen(tail) - runeLen(ellipsis)
	return truncateRunes(body, avail) + ellipsis + tail
}

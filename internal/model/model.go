package model

import "encoding/json"

type Meme struct {
	ID          string `json:"id"`
	ImageURL    string `json:"imageUrl"`
	Text        string `json:"text"`       // raw editor input, newline separated
	TextConfig  string `json:"textConfig"` // JSON array of LineConfig
	CreatedAt   int64  `json:"createdAt"`  // unix millis
	UserID      string `json:"userId"`
	UpvoteCount int    `json:"upvoteCount"`
}

// LineConfig is the persisted layout of one text line.
type LineConfig struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Size  float64 `json:"size"`
	Color string  `json:"color"`
}

// Lines decodes TextConfig. An empty config yields no lines.
func (m Meme) Lines() ([]LineConfig, error) {
	if m.TextConfig == "" {
		return nil, nil
	}
	var out []LineConfig
	if err := json.Unmarshal([]byte(m.TextConfig), &out); err != nil {
		return nil, err
	}
	return out, nil
}

type Vote struct {
	ID        string `json:"id"`
	MemeID    string `json:"memeId"`
	UserID    string `json:"userId"`
	CreatedAt int64  `json:"createdAt"`
}

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"createdAt"`
}

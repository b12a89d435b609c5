package session

import (
	"encoding/json"

	"github.com/google/uuid"
)

// StatusDocument is the JSON body of the server list status response.
type StatusDocument struct {
	Version      StatusVersion `json:"version"`
	Players      StatusPlayers `json:"players"`
	Description  StatusText    `json:"description"`
	Favicon      string        `json:"favicon,omitempty"`
	PreviewsChat bool          `json:"previewsChat"`
}

type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type StatusPlayers struct {
	Max    int            `json:"max"`
	Online int            `json:"online"`
	Sample []StatusPlayer `json:"sample,omitempty"`
}

type StatusPlayer struct {
	Name string    `json:"name"`
	ID   uuid.UUID `json:"id"`
}

// StatusText is the chat component form used for descriptions and
// disconnect reasons.
type StatusText struct {
	Text string `json:"text"`
}

// StatusFunc produces the document served to one status request.
type StatusFunc func() StatusDocument

func StaticStatus(doc StatusDocument) StatusFunc {
	return func() StatusDocument {
		return doc
	}
}

func DefaultStatus() StatusDocument {
	return StatusDocument{
		Version:     StatusVersion{Name: "1.19", Protocol: 759},
		Players:     StatusPlayers{Max: 100},
		Description: StatusText{Text: "A Minecraft Server"},
	}
}

func (d StatusDocument) JSON() (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func chatJSON(text string) (string, error) {
	raw, err := json.Marshal(StatusText{Text: text})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

package clients

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const (
	VideosCollection = "videos"

	FieldAudioProcessingStatus = "audioProcessingStatus"
	FieldAudioTracks           = "audioTracks"
	FieldAudioProcessingError  = "audioProcessingError"

	FieldProcessingStatus   = "processingStatus"
	FieldProcessingError    = "processingError"
	FieldValidationMetadata = "validationMetadata"
	FieldValidationErrors   = "validationErrors"
	FieldOpenShot           = "openshot"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// VideoDocument is an uploaded video as stored under the videos collection
type VideoDocument struct {
	UserID   string `mapstructure:"userId"`
	VideoURL string `mapstructure:"videoUrl"`
	// Optional explicit location of the HLS rendition, takes precedence over VideoURL
	StoragePath string `mapstructure:"storagePath"`
	Title       string `mapstructure:"title"`

	AudioProcessingStatus string   `mapstructure:"audioProcessingStatus"`
	AudioTracks           []string `mapstructure:"audioTracks"`
	AudioProcessingError  string   `mapstructure:"audioProcessingError"`
}

// TrackDocument is an entry of the per-video audioTracks subcollection. It is
// unrelated to the stem names produced by separation.
type TrackDocument struct {
	MasterPlaylistURL string `mapstructure:"masterPlaylistUrl"`
	Name              string `mapstructure:"name"`
}

func TracksCollection(videoID string) string {
	return path.Join(VideosCollection, videoID, "audioTracks")
}

func DecodeVideo(doc Document) (VideoDocument, error) {
	var v VideoDocument
	if err := decode(doc.Fields, &v); err != nil {
		return VideoDocument{}, fmt.Errorf("error decoding video %s: %w", doc.ID, err)
	}
	return v, nil
}

func DecodeTrack(doc Document) (TrackDocument, error) {
	var t TrackDocument
	if err := decode(doc.Fields, &t); err != nil {
		return TrackDocument{}, fmt.Errorf("error decoding track %s: %w", doc.ID, err)
	}
	return t, nil
}

func decode(fields map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(fields)
}

// BasePath returns the object store prefix holding the video's HLS rendition.
// A URL has its scheme, host and the public base path stripped, and a path
// to a file (the playlist) is reduced to its directory.
func (v VideoDocument) BasePath(publicBase *url.URL) string {
	raw := v.StoragePath
	if raw == "" {
		raw = v.VideoURL
	}
	if raw == "" {
		return ""
	}

	p := raw
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		p = u.Path
		if publicBase != nil && u.Host == publicBase.Host {
			p = strings.TrimPrefix(p, strings.TrimSuffix(publicBase.Path, "/"))
		}
	}
	p = strings.Trim(p, "/")
	if path.Ext(p) != "" {
		p = path.Dir(p)
	}
	if p == "." {
		return ""
	}
	return p + "/"
}

package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/livepeer/audio-api/config"
	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/pipeline"
)

type TranscribeRequest struct {
	TrackID   string   `json:"trackId"`
	StartTime *float64 `json:"startTime"`
	EndTime   *float64 `json:"endTime"`
}

// TimeRange is the effective range transcribed, in seconds
type TimeRange struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

type TranscribeResponse struct {
	Success   bool      `json:"success"`
	MIDIData  string    `json:"midiData"`
	Filename  string    `json:"filename"`
	TimeRange TimeRange `json:"timeRange"`
	Timestamp string    `json:"timestamp"`
}

func (d *AudioAPIHandlersCollection) Transcribe() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		var body TranscribeRequest
		if !decodeBody(w, req, "Transcribe", &body) {
			return
		}
		ctx := requestContext(req)

		res, err := d.Pipeline.Transcribe(ctx, pipeline.TranscriptionRequest{
			TrackID:   body.TrackID,
			StartTime: body.StartTime,
			EndTime:   body.EndTime,
		})
		if err != nil {
			errors.WritePipelineError(w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, TranscribeResponse{
			Success:  true,
			MIDIData: base64.StdEncoding.EncodeToString(res.MIDI),
			Filename: res.Filename,
			TimeRange: TimeRange{
				StartTime: res.Range.StartSeconds(),
				EndTime:   res.Range.EndSeconds(),
			},
			Timestamp: config.ISOTimestamp(),
		})
	}
}

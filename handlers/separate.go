package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/pipeline"
)

type SeparateRequest struct {
	VideoID string `json:"videoId"`
}

type SeparateResponse struct {
	Success     bool     `json:"success"`
	AudioTracks []string `json:"audioTracks"`
}

func (d *AudioAPIHandlersCollection) Separate() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		var body SeparateRequest
		if !decodeBody(w, req, "Separate", &body) {
			return
		}
		ctx := requestContext(req)

		res, err := d.Pipeline.Separate(ctx, pipeline.SeparationRequest{VideoID: body.VideoID})
		if err != nil {
			errors.WritePipelineError(w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, SeparateResponse{Success: true, AudioTracks: res.AudioTracks})
	}
}

package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/pipeline"
)

type PrepareVideoRequest struct {
	VideoID     string `json:"videoId"`
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type PrepareVideoResponse struct {
	Success            bool                   `json:"success"`
	ProjectID          int                    `json:"projectId"`
	FileID             int                    `json:"fileId"`
	ValidationMetadata map[string]interface{} `json:"validationMetadata"`
}

func (d *AudioAPIHandlersCollection) PrepareVideo() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		var body PrepareVideoRequest
		if !decodeBody(w, req, "PrepareVideo", &body) {
			return
		}
		ctx := requestContext(req)

		res, err := d.Pipeline.PrepareVideo(ctx, pipeline.PrepareRequest{
			VideoID:     body.VideoID,
			UserID:      body.UserID,
			Title:       body.Title,
			Description: body.Description,
		})
		if err != nil {
			errors.WritePipelineError(w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, PrepareVideoResponse{
			Success:            true,
			ProjectID:          res.ProjectID,
			FileID:             res.FileID,
			ValidationMetadata: res.ValidationMetadata,
		})
	}
}

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/livepeer/audio-api/clients"
	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/log"
)

type PrepareRequest struct {
	VideoID     string
	UserID      string
	Title       string
	Description string
}

type PrepareResult struct {
	ProjectID          int
	FileID             int
	ValidationMetadata map[string]interface{}
}

func OriginalVideoKey(userID, videoID string) string {
	return fmt.Sprintf("videos/%s/%s/openshot/original.mp4", userID, videoID)
}

// PrepareVideo imports an uploaded video into a new OpenShot project and
// records the project and the media details OpenShot reports on the video document.
func (c *Coordinator) PrepareVideo(ctx context.Context, req PrepareRequest) (PrepareResult, error) {
	videoID, userID := strings.TrimSpace(req.VideoID), strings.TrimSpace(req.UserID)
	if videoID == "" || userID == "" {
		return PrepareResult{}, errors.NewValidationError("Missing required fields: videoId and userId are required")
	}
	ctx = log.WithLogValues(ctx, "video_id", videoID, "user_id", userID)

	var res PrepareResult
	err := c.runJob(ctx, jobPrepare, videoID, jobPrepare+"/"+videoID, func() (err error) {
		res, err = c.prepare(ctx, videoID, userID)
		return err
	})
	if err == errJobRunning {
		return PrepareResult{}, errors.NewAlreadyProcessedError(fmt.Sprintf("Video %s is already being prepared", videoID))
	}
	return res, err
}

func (c *Coordinator) prepare(ctx context.Context, videoID, userID string) (PrepareResult, error) {
	doc, err := c.deps.Documents.Get(ctx, clients.VideosCollection, videoID)
	if err != nil {
		return PrepareResult{}, errors.NewInternalError("Error reading video document", err)
	}
	if !doc.Exists {
		return PrepareResult{}, errors.NewNotFoundError(fmt.Sprintf("Video with ID %s not found", videoID))
	}

	res, err := recovered(func() (PrepareResult, error) {
		return c.prepareVideo(ctx, videoID, userID)
	})
	if err != nil && !errors.IsClientFault(err) {
		c.markPrepareFailed(ctx, videoID, err)
	}
	return res, err
}

func (c *Coordinator) prepareVideo(ctx context.Context, videoID, userID string) (PrepareResult, error) {
	key := OriginalVideoKey(userID, videoID)
	ok, err := c.deps.Blobs.Exists(ctx, key)
	if err != nil {
		return PrepareResult{}, errors.NewInternalError("Error processing video", err)
	}
	if !ok {
		return PrepareResult{}, errors.NewNotFoundError("Video file not found in storage")
	}
	mediaURL, err := c.deps.Blobs.PublicURL(ctx, key)
	if err != nil {
		return PrepareResult{}, errors.NewInternalError("Error processing video", err)
	}

	projectID, err := c.deps.OpenShot.CreateProject(ctx, clients.NewOpenShotProject(videoID))
	if err != nil {
		return PrepareResult{}, openShotError(err)
	}
	file, err := c.deps.OpenShot.CreateFile(ctx, projectID, mediaURL, fmt.Sprintf("video_%s.mp4", videoID))
	if err != nil {
		return PrepareResult{}, openShotError(err)
	}
	log.LogCtx(ctx, "Imported video into OpenShot", "project_id", projectID, "file_id", file.ID)

	metadata := map[string]interface{}{
		"width":    file.Info.Width,
		"height":   file.Info.Height,
		"duration": file.Info.Duration,
		"codec":    file.Info.VCodec,
		"format":   file.Info.MediaType,
		"bitrate":  file.Info.VideoBitRate,
	}
	err = c.deps.Documents.Update(ctx, clients.VideosCollection, videoID, map[string]interface{}{
		clients.FieldProcessingStatus:   clients.StatusPending,
		clients.FieldValidationMetadata: metadata,
		clients.FieldOpenShot: map[string]interface{}{
			"projectId": projectID,
			"fileId":    file.ID,
		},
	})
	if err != nil {
		return PrepareResult{}, errors.NewInternalError("Error processing video", err)
	}
	return PrepareResult{ProjectID: projectID, FileID: file.ID, ValidationMetadata: metadata}, nil
}

func openShotError(err error) error {
	if clients.IsOpenShotAPIError(err) {
		return errors.NewUpstreamError(err)
	}
	return errors.NewInternalError("Error processing video", err)
}

func (c *Coordinator) markPrepareFailed(ctx context.Context, videoID string, cause error) {
	processingError := errors.ClassProcessingFailed
	if errors.KindOf(cause) == errors.KindUpstream {
		processingError = errors.ClassInvalidFormat
	}
	updateCtx, cancel := context.WithTimeout(context.Background(), statusUpdateTimeout)
	defer cancel()
	err := c.deps.Documents.Update(updateCtx, clients.VideosCollection, videoID, map[string]interface{}{
		clients.FieldProcessingStatus: clients.StatusFailed,
		clients.FieldProcessingError:  processingError,
		clients.FieldValidationErrors: []string{cause.Error()},
	})
	if err != nil {
		log.LogCtxError(ctx, "Error recording failed video preparation", err)
	}
}

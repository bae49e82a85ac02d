package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/livepeer/audio-api/clients"
	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/log"
	"github.com/livepeer/audio-api/metrics"
	"github.com/livepeer/audio-api/pcm"
	"github.com/livepeer/audio-api/separate"
	"github.com/livepeer/audio-api/workspace"
	"golang.org/x/sync/errgroup"
)

const (
	segmentContentType  = "video/mp2t"
	statusUpdateTimeout = 30 * time.Second
)

type SeparationRequest struct {
	VideoID string
}

type SeparationResult struct {
	AudioTracks []string
	// Number of objects written to the blob store
	Uploaded int
}

// Separate extracts the audio of every HLS segment of a video, splits it
// into stems and uploads one segment per stem, mirroring the source layout
// under audio/{videoId}/{stem}/. The outcome is recorded on the video document.
func (c *Coordinator) Separate(ctx context.Context, req SeparationRequest) (SeparationResult, error) {
	videoID := strings.TrimSpace(req.VideoID)
	if videoID == "" {
		return SeparationResult{}, errors.NewValidationError("Missing required field: videoId")
	}
	ctx = log.WithLogValues(ctx, "video_id", videoID)

	var res SeparationResult
	err := c.runJob(ctx, jobSeparate, videoID, jobSeparate+"/"+videoID, func() (err error) {
		res, err = c.separate(ctx, videoID)
		return err
	})
	if err == errJobRunning {
		return SeparationResult{}, errors.NewAlreadyProcessedError(fmt.Sprintf("Audio extraction already in progress for video %s", videoID))
	}
	return res, err
}

func (c *Coordinator) separate(ctx context.Context, videoID string) (SeparationResult, error) {
	doc, err := c.deps.Documents.Get(ctx, clients.VideosCollection, videoID)
	if err != nil {
		return SeparationResult{}, errors.NewInternalError("Error reading video document", err)
	}
	if !doc.Exists {
		return SeparationResult{}, errors.NewNotFoundError(fmt.Sprintf("Video with ID %s not found", videoID))
	}

	// From here on the document is known to exist, so server faults are recorded on it
	res, err := recovered(func() (SeparationResult, error) {
		return c.separateVideo(ctx, videoID, doc)
	})
	if err != nil {
		if !errors.IsClientFault(err) {
			c.markSeparationFailed(ctx, videoID, err)
		}
		return SeparationResult{}, err
	}
	return res, nil
}

func (c *Coordinator) separateVideo(ctx context.Context, videoID string, doc clients.Document) (SeparationResult, error) {
	video, err := clients.DecodeVideo(doc)
	if err != nil {
		return SeparationResult{}, errors.NewInternalError("Video document missing required fields", err)
	}
	basePath := video.BasePath(c.opts.PublicStorageURL)
	if video.UserID == "" || basePath == "" {
		return SeparationResult{}, errors.NewInternalError("Video document missing required fields", nil)
	}

	done, err := AlreadyExtracted(ctx, c.deps.Blobs, videoID)
	if err != nil {
		return SeparationResult{}, err
	}
	if done {
		return SeparationResult{}, errors.NewAlreadyProcessedError(fmt.Sprintf("Audio has already been extracted for video %s", videoID))
	}

	if err := c.deps.Documents.Update(ctx, clients.VideosCollection, videoID, map[string]interface{}{
		clients.FieldAudioProcessingStatus: clients.StatusPending,
	}); err != nil {
		return SeparationResult{}, errors.NewInternalError("Error updating video status", err)
	}

	dirs, err := Locate(ctx, c.deps.Blobs, basePath, c.opts.SegmentExtensions...)
	if err != nil {
		return SeparationResult{}, err
	}
	log.LogCtx(ctx, "Located audio segments", "base_path", basePath, "stream_dirs", len(dirs))

	uploaded := make([]int, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.StreamParallelism)
	for i, dir := range dirs {
		i, dir := i, dir
		g.Go(func() error {
			_, err := recovered(func() (bool, error) {
				for _, segment := range dir.Segments {
					n, err := c.processSegment(gctx, videoID, basePath, segment)
					uploaded[i] += n
					if err != nil {
						return false, err
					}
				}
				return true, nil
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return SeparationResult{}, err
	}

	tracks := separate.StemNames()
	if err := c.deps.Documents.Update(ctx, clients.VideosCollection, videoID, map[string]interface{}{
		clients.FieldAudioProcessingStatus: clients.StatusCompleted,
		clients.FieldAudioTracks:           tracks,
	}); err != nil {
		return SeparationResult{}, errors.NewInternalError("Error updating video status", err)
	}

	total := 0
	for _, n := range uploaded {
		total += n
	}
	return SeparationResult{AudioTracks: tracks, Uploaded: total}, nil
}

// processSegment runs one segment through decode, separation, re-encode and
// upload. Returns the number of objects uploaded.
func (c *Coordinator) processSegment(ctx context.Context, videoID, basePath, key string) (int, error) {
	start := time.Now()
	ctx = log.WithLogValues(ctx, "segment", key)

	ws, err := workspace.Create(c.opts.WorkspaceRoot, "segment")
	if err != nil {
		return 0, errors.NewInternalError("Error creating segment workspace", err)
	}
	defer ws.Cleanup()

	source := ws.Path("source" + path.Ext(key))
	if err := c.download(ctx, key, source); err != nil {
		return 0, err
	}

	info, err := c.deps.Transcoder.ProbeAudio(ctx, source)
	if err != nil {
		return 0, err
	}
	log.LogCtx(ctx, "Probed segment", "codec", info.Codec, "channels", info.Channels, "sample_rate", info.SampleRate, "duration", info.DurationSec)

	mixWav := ws.Path("original.wav")
	if err := c.deps.Transcoder.ToPCM(ctx, source, mixWav, c.opts.SeparationPCM); err != nil {
		return 0, err
	}
	mix, err := pcm.ReadFile(mixWav)
	if err != nil {
		return 0, errors.NewInternalError("Error reading decoded audio", err)
	}

	stems, err := c.deps.Separator.Separate(ctx, mix)
	if err != nil {
		return 0, err
	}
	if err := separate.CheckStems(stems); err != nil {
		return 0, err
	}

	// Encode everything before uploading anything, so that a failing stem leaves no objects behind
	outputs := map[separate.Stem]string{separate.StemOriginal: ws.Path("original.ts")}
	if err := c.deps.Transcoder.ToSegment(ctx, mixWav, outputs[separate.StemOriginal], c.opts.OriginalSegment); err != nil {
		return 0, err
	}
	for _, stem := range separate.ModelStems {
		wav := ws.Path(string(stem) + ".wav")
		if err := pcm.WriteFile(wav, stems[stem]); err != nil {
			return 0, errors.NewInternalError(fmt.Sprintf("Error writing %s stem", stem), err)
		}
		outputs[stem] = ws.Path(string(stem) + ".ts")
		if err := c.deps.Transcoder.ToSegment(ctx, wav, outputs[stem], c.opts.StemSegment); err != nil {
			return 0, err
		}
	}

	rel := strings.TrimPrefix(key, basePath)
	uploaded := 0
	for _, stem := range separate.AllStems {
		dest := DestinationKey(videoID, stem, rel)
		if err := c.upload(ctx, outputs[stem], dest); err != nil {
			return uploaded, err
		}
		uploaded++
	}
	metrics.Metrics.SegmentDuration.Observe(time.Since(start).Seconds())
	log.LogCtx(ctx, "Segment separated", "uploaded", uploaded, "duration", time.Since(start))
	return uploaded, nil
}

func (c *Coordinator) download(ctx context.Context, key, dest string) error {
	rc, err := c.deps.Blobs.Download(ctx, key)
	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("Error downloading segment %s", key), err)
	}
	defer rc.Close()

	f, err := os.Create(dest)
	if err != nil {
		return errors.NewInternalError("Error creating segment file", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, rc); err != nil {
		return errors.NewInternalError(fmt.Sprintf("Error downloading segment %s", key), err)
	}
	return nil
}

func (c *Coordinator) upload(ctx context.Context, file, dest string) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.NewInternalError("Error opening encoded stem", err)
	}
	defer f.Close()
	if err := c.deps.Blobs.Upload(ctx, dest, f, segmentContentType); err != nil {
		return errors.NewInternalError(fmt.Sprintf("Error uploading %s", dest), err)
	}
	metrics.Metrics.UploadedObjects.Inc()
	return nil
}

func (c *Coordinator) markSeparationFailed(ctx context.Context, videoID string, cause error) {
	// The job context may already be cancelled, the failure still has to be recorded
	updateCtx, cancel := context.WithTimeout(context.Background(), statusUpdateTimeout)
	defer cancel()
	err := c.deps.Documents.Update(updateCtx, clients.VideosCollection, videoID, map[string]interface{}{
		clients.FieldAudioProcessingStatus: clients.StatusFailed,
		clients.FieldAudioProcessingError:  cause.Error(),
	})
	if err != nil {
		log.LogCtxError(ctx, "Error recording failed audio processing status", err)
	}
}

package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/livepeer/audio-api/clients"
	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/log"
	"github.com/livepeer/audio-api/pcm"
	"github.com/livepeer/audio-api/transcode"
	"github.com/livepeer/audio-api/workspace"
)

// The model expects CD quality stereo regardless of the source
var transcriptionPCM = transcode.PCMParams{SampleRate: 44100, Channels: 2}

type TranscriptionRequest struct {
	// TrackID is "videoId/audioTrackId"
	TrackID   string
	StartTime *float64
	EndTime   *float64
}

type TranscriptionResult struct {
	MIDI     []byte
	Filename string
	Range    pcm.Range
}

// ParseTrackID splits a "videoId/audioTrackId" identifier
func ParseTrackID(trackID string) (videoID, audioTrackID string, err error) {
	parts := strings.Split(trackID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.NewValidationError("Invalid trackId format. Expected format: videoId/audioTrackId")
	}
	return parts[0], parts[1], nil
}

// MIDIFilename names the artifact after the track and the effective range, in seconds
func MIDIFilename(trackID string, r pcm.Range) string {
	return fmt.Sprintf("%s_%.1f_%.1f.midi", strings.ReplaceAll(trackID, "/", "_"), r.StartSeconds(), r.EndSeconds())
}

// Transcribe turns a time range of an audio track into a MIDI file. Nothing
// is persisted: the track document is only read.
func (c *Coordinator) Transcribe(ctx context.Context, req TranscriptionRequest) (TranscriptionResult, error) {
	trackID := strings.TrimSpace(req.TrackID)
	if trackID == "" {
		return TranscriptionResult{}, errors.NewValidationError("Missing required field: trackId")
	}
	videoID, audioTrackID, err := ParseTrackID(trackID)
	if err != nil {
		return TranscriptionResult{}, err
	}
	// Reject a range that can never be valid before doing any work
	if req.StartTime != nil && req.EndTime != nil && *req.StartTime >= *req.EndTime {
		return TranscriptionResult{}, errors.NewInvalidRangeError()
	}
	ctx = log.WithLogValues(ctx, "video_id", videoID, "track_id", audioTrackID)

	var res TranscriptionResult
	// Transcriptions of the same track may run side by side
	key := jobTranscribe + "/" + uuid.NewString()
	err = c.runJob(ctx, jobTranscribe, trackID, key, func() (err error) {
		res, err = c.transcribe(ctx, videoID, audioTrackID, req)
		return err
	})
	return res, err
}

func (c *Coordinator) transcribe(ctx context.Context, videoID, audioTrackID string, req TranscriptionRequest) (TranscriptionResult, error) {
	doc, err := c.deps.Documents.Get(ctx, clients.TracksCollection(videoID), audioTrackID)
	if err != nil {
		return TranscriptionResult{}, errors.NewInternalError("Error reading audio track", err)
	}
	if !doc.Exists {
		return TranscriptionResult{}, errors.NewNotFoundError(fmt.Sprintf("Audio track %s not found in video %s", audioTrackID, videoID))
	}
	track, err := clients.DecodeTrack(doc)
	if err != nil {
		return TranscriptionResult{}, errors.NewInternalError("Error decoding audio track", err)
	}
	if track.MasterPlaylistURL == "" {
		return TranscriptionResult{}, errors.NewNotFoundError("Master playlist URL not found in track data")
	}

	ws, err := workspace.Create(c.opts.WorkspaceRoot, "transcribe")
	if err != nil {
		return TranscriptionResult{}, errors.NewInternalError("Error creating transcription workspace", err)
	}
	defer ws.Cleanup()

	media := ws.Path("downloaded_media")
	if err := c.fetch(ctx, track.MasterPlaylistURL, media); err != nil {
		return TranscriptionResult{}, err
	}

	downloadedWav := ws.Path("downloaded_audio.wav")
	if err := c.deps.Transcoder.ToPCM(ctx, media, downloadedWav, transcriptionPCM); err != nil {
		return TranscriptionResult{}, err
	}
	audio, err := pcm.ReadFile(downloadedWav)
	if err != nil {
		return TranscriptionResult{}, errors.NewInternalError("Error processing audio segment", err)
	}

	sliced, r, err := pcm.Slice(audio, req.StartTime, req.EndTime)
	if err != nil {
		return TranscriptionResult{}, err
	}
	processedWav := ws.Path("processed_audio.wav")
	if err := pcm.WriteFile(processedWav, sliced); err != nil {
		return TranscriptionResult{}, errors.NewInternalError("Error processing audio segment", err)
	}
	log.LogCtx(ctx, "Prepared audio for transcription", "start_ms", r.StartMS, "end_ms", r.EndMS)

	data, err := c.deps.Transcriber.Transcribe(ctx, processedWav)
	if err != nil {
		return TranscriptionResult{}, err
	}
	return TranscriptionResult{
		MIDI:     data,
		Filename: MIDIFilename(videoID+"/"+audioTrackID, r),
		Range:    r,
	}, nil
}

func (c *Coordinator) fetch(ctx context.Context, sourceURL, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return errors.NewInternalError("Error downloading audio", err)
	}
	defer f.Close()

	n, err := c.deps.Fetcher.Fetch(ctx, sourceURL, f)
	if err != nil {
		return errors.NewInternalError("Error downloading audio", err)
	}
	if n == 0 {
		return errors.NewInternalError("Error downloading audio", fmt.Errorf("no data received from %s", log.RedactURL(sourceURL)))
	}
	return nil
}

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/livepeer/audio-api/clients"
	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/pcm"
	"github.com/livepeer/audio-api/separate"
	"github.com/livepeer/audio-api/transcode"
	"github.com/stretchr/testify/require"
)

type upload struct {
	Key         string
	ContentType string
}

type memBlobs struct {
	mu       sync.Mutex
	objects  map[string][]byte
	uploads  []upload
	listed   int
	failList error
	// keyed by object key
	failDownload map[string]error
}

func newMemBlobs(keys ...string) *memBlobs {
	b := &memBlobs{objects: map[string][]byte{}}
	for _, k := range keys {
		b.objects[k] = []byte("segment " + k)
	}
	return b
}

func (b *memBlobs) ListByPrefix(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listed++
	if b.failList != nil {
		return nil, b.failList
	}
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *memBlobs) Download(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failDownload[key]; err != nil {
		return nil, err
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.NewObjectNotFoundError("no such key "+key, nil)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBlobs) Upload(_ context.Context, key string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = body
	b.uploads = append(b.uploads, upload{Key: key, ContentType: contentType})
	return nil
}

func (b *memBlobs) Exists(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *memBlobs) PublicURL(_ context.Context, key string) (string, error) {
	return "https://storage.example.com/" + key, nil
}

func (b *memBlobs) uploadedKeys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for _, u := range b.uploads {
		keys = append(keys, u.Key)
	}
	return keys
}

type docUpdate struct {
	Collection string
	ID         string
	Fields     map[string]interface{}
}

type memDocs struct {
	mu      sync.Mutex
	docs    map[string]map[string]interface{}
	updates []docUpdate
	gets    int
}

func newMemDocs() *memDocs {
	return &memDocs{docs: map[string]map[string]interface{}{}}
}

func (d *memDocs) put(collection, id string, fields map[string]interface{}) {
	d.docs[collection+"/"+id] = fields
}

func (d *memDocs) Get(_ context.Context, collection, id string) (clients.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gets++
	fields, ok := d.docs[collection+"/"+id]
	if !ok {
		return clients.Document{ID: id}, nil
	}
	return clients.Document{ID: id, Exists: true, Fields: fields}, nil
}

func (d *memDocs) Update(_ context.Context, collection, id string, fields map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.docs[collection+"/"+id]
	if !ok {
		return errors.NewObjectNotFoundError("no document "+id, nil)
	}
	for k, v := range fields {
		doc[k] = v
	}
	d.updates = append(d.updates, docUpdate{Collection: collection, ID: id, Fields: fields})
	return nil
}

func (d *memDocs) statuses(field string) []interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []interface{}
	for _, u := range d.updates {
		if s, ok := u.Fields[field]; ok {
			out = append(out, s)
		}
	}
	return out
}

// stubTranscoder writes one second of silence for every decode and tags
// every encoded segment with its parameters
type stubTranscoder struct {
	mu          sync.Mutex
	pcmCalls    []transcode.PCMParams
	segments    map[string]transcode.SegmentParams
	failToPCM   error
	failSegment func(out string) error
}

func (s *stubTranscoder) ToPCM(_ context.Context, in, out string, p transcode.PCMParams) error {
	s.mu.Lock()
	s.pcmCalls = append(s.pcmCalls, p)
	s.mu.Unlock()
	if s.failToPCM != nil {
		return s.failToPCM
	}
	if _, err := os.Stat(in); err != nil {
		return err
	}
	return pcm.WriteFile(out, &pcm.Buffer{
		Samples:    make([]int, p.SampleRate*p.Channels),
		SampleRate: p.SampleRate,
		Channels:   p.Channels,
		BitDepth:   16,
	})
}

func (s *stubTranscoder) ToSegment(_ context.Context, in, out string, p transcode.SegmentParams) error {
	if s.failSegment != nil {
		if err := s.failSegment(out); err != nil {
			return err
		}
	}
	s.mu.Lock()
	if s.segments == nil {
		s.segments = map[string]transcode.SegmentParams{}
	}
	s.segments[out] = p
	s.mu.Unlock()
	return os.WriteFile(out, []byte(fmt.Sprintf("ts %s %s", p.Bitrate, in)), 0644)
}

func (s *stubTranscoder) ProbeAudio(context.Context, string) (transcode.AudioInfo, error) {
	return transcode.AudioInfo{Codec: "aac", Channels: 2, SampleRate: 48000, DurationSec: 2}, nil
}

type stubSeparator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubSeparator) Separate(_ context.Context, in *pcm.Buffer) (map[separate.Stem]*pcm.Buffer, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	stems := map[separate.Stem]*pcm.Buffer{}
	for _, stem := range separate.ModelStems {
		b := *in
		stems[stem] = &b
	}
	return stems, nil
}

func (s *stubSeparator) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubTranscriber struct {
	calls  int
	frames []int
	err    error
}

func (s *stubTranscriber) Transcribe(_ context.Context, wavPath string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	b, err := pcm.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	s.frames = append(s.frames, b.Frames())
	return []byte("MThd fake midi"), nil
}

type stubFetcher struct {
	calls   []string
	payload []byte
	err     error
}

func (s *stubFetcher) Fetch(_ context.Context, sourceURL string, dest io.Writer) (int64, error) {
	s.calls = append(s.calls, sourceURL)
	if s.err != nil {
		return 0, s.err
	}
	n, err := dest.Write(s.payload)
	return int64(n), err
}

type stubOpenShot struct {
	projects  []clients.OpenShotProject
	files     []string
	projectID int
	file      clients.OpenShotFile
	err       error
}

func (s *stubOpenShot) CreateProject(_ context.Context, p clients.OpenShotProject) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.projects = append(s.projects, p)
	return s.projectID, nil
}

func (s *stubOpenShot) CreateFile(_ context.Context, projectID int, mediaURL, name string) (clients.OpenShotFile, error) {
	if s.err != nil {
		return clients.OpenShotFile{}, s.err
	}
	s.files = append(s.files, mediaURL+" "+name)
	return s.file, nil
}

type testEnv struct {
	blobs       *memBlobs
	docs        *memDocs
	fetcher     *stubFetcher
	openShot    *stubOpenShot
	transcoder  *stubTranscoder
	separator   *stubSeparator
	transcriber *stubTranscriber
	coordinator *Coordinator
}

func newTestEnv(t *testing.T, blobs *memBlobs) *testEnv {
	env := &testEnv{
		blobs:       blobs,
		docs:        newMemDocs(),
		fetcher:     &stubFetcher{payload: []byte("fetched media")},
		openShot:    &stubOpenShot{projectID: 12},
		transcoder:  &stubTranscoder{},
		separator:   &stubSeparator{},
		transcriber: &stubTranscriber{},
	}
	opts := DefaultOptions()
	opts.WorkspaceRoot = t.TempDir()
	opts.StreamParallelism = 2
	c, err := NewCoordinator(Deps{
		Blobs:       env.blobs,
		Documents:   env.docs,
		Fetcher:     env.fetcher,
		OpenShot:    env.openShot,
		Transcoder:  env.transcoder,
		Separator:   env.separator,
		Transcriber: env.transcriber,
	}, opts)
	require.NoError(t, err)
	env.coordinator = c
	return env
}

// requireWorkspaceEmpty checks that every per-job directory was removed
func requireWorkspaceEmpty(t *testing.T, env *testEnv) {
	entries, err := os.ReadDir(env.coordinator.opts.WorkspaceRoot)
	require.NoError(t, err)
	require.Empty(t, entries)
}

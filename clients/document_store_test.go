package clients

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	xerrors "github.com/livepeer/audio-api/errors"
	"github.com/stretchr/testify/require"
)

var (
	selectFields = regexp.QuoteMeta("SELECT fields FROM documents WHERE collection = $1 AND id = $2")
	mergeFields  = regexp.QuoteMeta("UPDATE documents SET fields = fields || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2")
)

func TestGetExistingDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectQuery(selectFields).
		WithArgs("videos", "v1").
		WillReturnRows(sqlmock.NewRows([]string{"fields"}).AddRow(`{"userId":"u1","videoUrl":"videos/u1/v1/hls/index.m3u8","audioTracks":["original"]}`))

	doc, err := NewPostgresDocumentStore(db).Get(context.Background(), "videos", "v1")
	require.NoError(t, err)
	require.True(t, doc.Exists)
	require.Equal(t, "v1", doc.ID)

	video, err := DecodeVideo(doc)
	require.NoError(t, err)
	require.Equal(t, "u1", video.UserID)
	require.Equal(t, []string{"original"}, video.AudioTracks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissingDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectQuery(selectFields).
		WithArgs("videos/v1/audioTracks", "t9").
		WillReturnRows(sqlmock.NewRows([]string{"fields"}))

	doc, err := NewPostgresDocumentStore(db).Get(context.Background(), TracksCollection("v1"), "t9")
	require.NoError(t, err)
	require.False(t, doc.Exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectQuery(selectFields).WillReturnError(fmt.Errorf("connection refused"))

	_, err = NewPostgresDocumentStore(db).Get(context.Background(), "videos", "v1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

func TestUpdateMergesFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectExec(mergeFields).
		WithArgs("videos", "v1", `{"audioProcessingStatus":"completed","audioTracks":["original","drums"]}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewPostgresDocumentStore(db).Update(context.Background(), "videos", "v1", map[string]interface{}{
		FieldAudioProcessingStatus: StatusCompleted,
		FieldAudioTracks:           []string{"original", "drums"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectExec(mergeFields).WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewPostgresDocumentStore(db).Update(context.Background(), "videos", "nope", map[string]interface{}{"a": 1})
	require.Error(t, err)
	require.True(t, xerrors.IsObjectNotFound(err))
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewPostgresDocumentStore(db).EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecodeTrack(t *testing.T) {
	track, err := DecodeTrack(Document{ID: "t1", Exists: true, Fields: map[string]interface{}{
		"masterPlaylistUrl": "https://cdn.example.com/t1/master.m3u8",
		"name":              "Guitar",
	}})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/t1/master.m3u8", track.MasterPlaylistURL)
}

func TestVideoBasePath(t *testing.T) {
	public, _ := url.Parse("https://cdn.example.com/media")

	for _, tc := range []struct {
		video    VideoDocument
		expected string
	}{
		{VideoDocument{VideoURL: "https://cdn.example.com/media/videos/u1/v1/hls/index.m3u8"}, "videos/u1/v1/hls/"},
		{VideoDocument{VideoURL: "https://other.example.com/videos/u1/v1/hls/index.m3u8"}, "videos/u1/v1/hls/"},
		{VideoDocument{VideoURL: "videos/u1/v1/hls"}, "videos/u1/v1/hls/"},
		{VideoDocument{VideoURL: "/videos/u1/v1/hls/"}, "videos/u1/v1/hls/"},
		{VideoDocument{VideoURL: "https://x/a/b.m3u8", StoragePath: "videos/u1/v1"}, "videos/u1/v1/"},
		{VideoDocument{}, ""},
	} {
		require.Equal(t, tc.expected, tc.video.BasePath(public), "%+v", tc.video)
	}
}

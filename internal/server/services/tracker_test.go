package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

func TestAccessTracker_TrackAndHistory(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repos := newFakeRepoManager()
	tr := NewAccessTracker(db, repos, logging.Nop{})
	tr.newID = sequence("ev")
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tr.now = func() time.Time { return at }

	tr.Track(context.Background(), "f1", "bob", models.AccessDownload)
	tr.Track(context.Background(), "f2", "bob", models.AccessView)
	tr.Track(context.Background(), "f1", "carol", models.AccessEdit)

	got, err := tr.History(context.Background(), "f1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, &models.FileAccess{ID: "ev-3", FileID: "f1", UserID: "carol", AccessType: models.AccessEdit, Timestamp: at}, got[0])
	assert.Equal(t, "ev-1", got[1].ID)

	got, err = tr.History(context.Background(), "f1", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAccessTracker_Nil(t *testing.T) {
	var tr *AccessTracker
	tr.Track(context.Background(), "f1", "bob", models.AccessDownload)

	got, err := tr.History(context.Background(), "f1", 10)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

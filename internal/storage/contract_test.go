package storage

import (
	"context"
	"errors"
	"facilitywatch/internal/models"
	"testing"
	"time"

	"github.com/google/uuid"
)

// runStorageContract exercises behaviour every backend must share.
func runStorageContract(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()
	user := uuid.NewString()
	other := uuid.NewString()
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Ping", func(t *testing.T) {
		if err := s.Ping(ctx); err != nil {
			t.Fatalf("Ping failed: %v", err)
		}
	})

	t.Run("Favorites", func(t *testing.T) {
		favs, err := s.Favorites(ctx, user)
		if err != nil {
			t.Fatalf("Favorites failed: %v", err)
		}
		if favs == nil || len(favs) != 0 {
			t.Fatalf("expected empty non-nil slice, got %v", favs)
		}

		first := &models.Favorite{UserID: user, FacilityID: "232447", FacilityName: "Upper Pines", CreatedAt: base}
		second := &models.Favorite{UserID: user, FacilityID: "232450", FacilityName: "Lower Pines", CreatedAt: base.Add(time.Hour)}
		for _, fav := range []*models.Favorite{first, second} {
			if err := s.SaveFavorite(ctx, fav); err != nil {
				t.Fatalf("SaveFavorite failed: %v", err)
			}
		}

		err = s.SaveFavorite(ctx, &models.Favorite{UserID: user, FacilityID: "232447", CreatedAt: base.Add(2 * time.Hour)})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists for duplicate favorite, got %v", err)
		}

		favs, err = s.Favorites(ctx, user)
		if err != nil {
			t.Fatalf("Favorites failed: %v", err)
		}
		if len(favs) != 2 {
			t.Fatalf("expected 2 favorites, got %d", len(favs))
		}
		if favs[0].FacilityID != "232450" || favs[1].FacilityID != "232447" {
			t.Errorf("expected most recent first, got %s, %s", favs[0].FacilityID, favs[1].FacilityID)
		}
		if !favs[1].CreatedAt.Equal(base) {
			t.Errorf("duplicate save must keep original created_at, got %v", favs[1].CreatedAt)
		}
		if favs[1].FacilityName != "Upper Pines" {
			t.Errorf("expected facility name to round trip, got %q", favs[1].FacilityName)
		}

		otherFavs, err := s.Favorites(ctx, other)
		if err != nil {
			t.Fatalf("Favorites failed: %v", err)
		}
		if len(otherFavs) != 0 {
			t.Errorf("favorites leaked across users: %v", otherFavs)
		}

		if err := s.DeleteFavorite(ctx, user, "232447"); err != nil {
			t.Fatalf("DeleteFavorite failed: %v", err)
		}
		if err := s.DeleteFavorite(ctx, user, "232447"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting twice, got %v", err)
		}
		if err := s.DeleteFavorite(ctx, other, "232450"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting another user's favorite, got %v", err)
		}
	})

	t.Run("Alerts", func(t *testing.T) {
		older := &models.Alert{
			ID: uuid.NewString(), UserID: user, FacilityID: "232447", Date: "2026-07-04",
			MinAvailable: 2, Channel: models.ChannelEmail, Target: "camper@example.com", CreatedAt: base,
		}
		newer := &models.Alert{
			ID: uuid.NewString(), UserID: user, FacilityID: "232450", Date: "2026-07-05",
			MinAvailable: 1, Channel: models.ChannelPush, Target: "device-token", CreatedAt: base.Add(time.Minute),
		}
		foreign := &models.Alert{
			ID: uuid.NewString(), UserID: other, FacilityID: "232447", Date: "2026-07-04",
			MinAvailable: 1, Channel: models.ChannelPush, Target: "other-device", CreatedAt: base.Add(2 * time.Minute),
		}
		for _, a := range []*models.Alert{newer, older, foreign} {
			if err := s.SaveAlert(ctx, a); err != nil {
				t.Fatalf("SaveAlert failed: %v", err)
			}
		}

		alerts, err := s.Alerts(ctx, user)
		if err != nil {
			t.Fatalf("Alerts failed: %v", err)
		}
		if len(alerts) != 2 {
			t.Fatalf("expected 2 alerts for user, got %d", len(alerts))
		}
		if alerts[0].ID != older.ID || alerts[1].ID != newer.ID {
			t.Errorf("expected oldest first")
		}

		all, err := s.AllAlerts(ctx)
		if err != nil {
			t.Fatalf("AllAlerts failed: %v", err)
		}
		if len(all) < 3 {
			t.Errorf("expected at least 3 alerts, got %d", len(all))
		}

		got, err := s.GetAlert(ctx, older.ID)
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if got.Target != "camper@example.com" || got.MinAvailable != 2 || got.LastNotifiedAt != nil {
			t.Errorf("unexpected alert: %+v", got)
		}

		// Upsert stamps the notification time
		notified := base.Add(time.Hour)
		older.LastNotifiedAt = &notified
		if err := s.SaveAlert(ctx, older); err != nil {
			t.Fatalf("SaveAlert (update) failed: %v", err)
		}
		got, err = s.GetAlert(ctx, older.ID)
		if err != nil {
			t.Fatalf("GetAlert after update failed: %v", err)
		}
		if got.LastNotifiedAt == nil || !got.LastNotifiedAt.Equal(notified) {
			t.Errorf("expected last_notified_at %v, got %v", notified, got.LastNotifiedAt)
		}

		if _, err := s.GetAlert(ctx, "nonexistent"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		if err := s.DeleteAlert(ctx, older.ID); err != nil {
			t.Fatalf("DeleteAlert failed: %v", err)
		}
		if err := s.DeleteAlert(ctx, older.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting twice, got %v", err)
		}
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postline/internal/types"
)

func writeProfiles(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

const validDoc = `
profiles:
  teo:
    account_ref: teo_account
    timezone: America/Sao_Paulo
    platforms: [instagram]
    monitored: true
    source:
      dir: videos
      used_dir: videos/used
      prefix: TEO_REEL_
      ext: .mp4
    slots:
      - {hour: 19, title: "Reels TEO - 19:00"}
      - {hour: 10, title: "Reels TEO - 10:00"}
      - {hour: 13, title: "Reels TEO - 13:00"}
  petselectuk:
    account_ref: petselectuk
    timezone: Europe/London
    platforms: [instagram]
    caption_family: promo
    monitored: true
    slots:
      - {hour: 9, title: "Quick tips", kind: carousel}
      - {hour: 13, title: "UK Delivery", kind: image}
      - {hour: 19, title: "Reel", kind: reel}
  jp_main:
    account_ref: jp_main_account
    timezone: America/Sao_Paulo
    platforms: [tiktok, youtube, facebook, instagram]
    caption_family: filename
    monitored: true
    quota_if_queued: true
    slots:
      - {hour: 22, title: "JP daily"}
`

func TestLoadProfiles(t *testing.T) {
	profiles, err := LoadProfiles(writeProfiles(t, validDoc))
	require.NoError(t, err)
	require.Len(t, profiles, 3)

	teo := profiles["teo"]
	assert.Equal(t, "teo", teo.Key)
	assert.Equal(t, "teo_account", teo.AccountRef)
	assert.Equal(t, 3, teo.ExpectedPerDay)
	assert.Equal(t, types.CaptionPromo, teo.CaptionFamily)
	assert.Equal(t, "instagram", teo.LedgerPlatform())

	// Slots sorted into ascending time order regardless of file order.
	hours := []int{teo.Slots[0].Hour, teo.Slots[1].Hour, teo.Slots[2].Hour}
	assert.Equal(t, []int{10, 13, 19}, hours)

	pet := profiles["petselectuk"]
	assert.Equal(t, types.KindCarousel, pet.Slots[0].Kind)
	assert.Equal(t, 5, pet.Slots[0].AssetCount)
	assert.Equal(t, types.KindImage, pet.Slots[1].Kind)
	assert.Equal(t, 1, pet.Slots[1].AssetCount)

	jp := profiles["jp_main"]
	assert.True(t, jp.QuotaIfQueued)
	assert.Equal(t, types.PlatformMulti, jp.LedgerPlatform())
	assert.Equal(t, types.KindReel, jp.Slots[0].Kind)
}

func TestLoadProfilesRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "bad timezone",
			doc: `
profiles:
  x:
    account_ref: a
    timezone: Mars/Olympus
    platforms: [instagram]
    slots: [{hour: 10}]
`,
		},
		{
			name: "missing account ref",
			doc: `
profiles:
  x:
    timezone: Europe/London
    platforms: [instagram]
    slots: [{hour: 10}]
`,
		},
		{
			name: "no slots",
			doc: `
profiles:
  x:
    account_ref: a
    timezone: Europe/London
    platforms: [instagram]
`,
		},
		{
			name: "invalid hour",
			doc: `
profiles:
  x:
    account_ref: a
    timezone: Europe/London
    platforms: [instagram]
    slots: [{hour: 24}]
`,
		},
		{
			name: "unknown kind",
			doc: `
profiles:
  x:
    account_ref: a
    timezone: Europe/London
    platforms: [instagram]
    slots: [{hour: 10, kind: hologram}]
`,
		},
		{
			name: "empty document",
			doc:  "profiles: {}\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadProfiles(writeProfiles(t, tc.doc))
			require.Error(t, err)
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, types.ErrCodeConfigInvalid, appErr.Code)
		})
	}
}

func TestProfileLookup(t *testing.T) {
	profiles, err := LoadProfiles(writeProfiles(t, validDoc))
	require.NoError(t, err)

	_, err = Profile(profiles, "teo")
	require.NoError(t, err)

	_, err = Profile(profiles, "ghost")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeProfileMissing, appErr.Code)
}

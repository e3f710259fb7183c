package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"postline/internal/types"
)

// defaultCarouselSize is how many queue files a carousel slot consumes when
// asset_count is not set.
const defaultCarouselSize = 5

// profilesFile is the YAML document shape of the profiles file.
type profilesFile struct {
	Profiles map[string]profileYAML `yaml:"profiles"`
}

type profileYAML struct {
	AccountRef     string          `yaml:"account_ref"`
	Timezone       string          `yaml:"timezone"`
	Platforms      []string        `yaml:"platforms"`
	CaptionFamily  string          `yaml:"caption_family"`
	Monitored      bool            `yaml:"monitored"`
	ExpectedPerDay int             `yaml:"expected_per_day"`
	QuotaIfQueued  bool            `yaml:"quota_if_queued"`
	Source         assetSourceYAML `yaml:"source"`
	Slots          []slotYAML      `yaml:"slots"`
}

type assetSourceYAML struct {
	Dir     string `yaml:"dir"`
	UsedDir string `yaml:"used_dir"`
	Prefix  string `yaml:"prefix"`
	Ext     string `yaml:"ext"`
}

type slotYAML struct {
	Hour       int    `yaml:"hour"`
	Minute     int    `yaml:"minute"`
	Title      string `yaml:"title"`
	Kind       string `yaml:"kind"`
	AssetCount int    `yaml:"asset_count"`
}

// LoadProfiles reads and validates the profile map from the YAML file at
// path. Slots are normalized (kind defaulted to reel, carousel asset counts
// defaulted) and sorted into ascending time-of-day order, which the
// scheduler depends on.
func LoadProfiles(path string) (map[string]types.Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "reading profiles file", err)
	}

	var doc profilesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "parsing profiles file", err)
	}
	if len(doc.Profiles) == 0 {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "profiles file defines no profiles", nil)
	}

	out := make(map[string]types.Profile, len(doc.Profiles))
	for key, p := range doc.Profiles {
		profile, err := buildProfile(key, p)
		if err != nil {
			return nil, err
		}
		out[key] = profile
	}
	return out, nil
}

// Profile returns one profile from the map or a hard error: a missing
// mapping aborts the invocation, since scheduling against an unknown
// account is never safe.
func Profile(profiles map[string]types.Profile, key string) (types.Profile, error) {
	p, ok := profiles[key]
	if !ok {
		return types.Profile{}, types.NewAppError(types.ErrCodeProfileMissing,
			fmt.Sprintf("no profile mapping for %q", key), nil)
	}
	return p, nil
}

func buildProfile(key string, p profileYAML) (types.Profile, error) {
	if p.AccountRef == "" {
		return types.Profile{}, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("profile %q: account_ref is required", key), nil)
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return types.Profile{}, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("profile %q: invalid timezone %q", key, p.Timezone), err)
	}
	if len(p.Platforms) == 0 {
		return types.Profile{}, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("profile %q: at least one platform is required", key), nil)
	}
	if len(p.Slots) == 0 {
		return types.Profile{}, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("profile %q: at least one slot is required", key), nil)
	}

	family := types.CaptionFamily(p.CaptionFamily)
	switch family {
	case "":
		family = types.CaptionPromo
	case types.CaptionPromo, types.CaptionFilename:
	default:
		return types.Profile{}, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("profile %q: unknown caption_family %q", key, p.CaptionFamily), nil)
	}

	slots := make([]types.Slot, 0, len(p.Slots))
	for i, s := range p.Slots {
		slot, err := buildSlot(key, i, s)
		if err != nil {
			return types.Profile{}, err
		}
		slots = append(slots, slot)
	}
	// Slots must be submitted in ascending time order because asset
	// selection consumes an ordered queue.
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Hour != slots[j].Hour {
			return slots[i].Hour < slots[j].Hour
		}
		return slots[i].Minute < slots[j].Minute
	})

	expected := p.ExpectedPerDay
	if expected == 0 {
		expected = len(slots)
	}

	return types.Profile{
		Key:           key,
		AccountRef:    p.AccountRef,
		Timezone:      p.Timezone,
		Platforms:     p.Platforms,
		Slots:         slots,
		CaptionFamily: family,
		Source: types.AssetSourceConfig{
			Dir:     p.Source.Dir,
			UsedDir: p.Source.UsedDir,
			Prefix:  p.Source.Prefix,
			Ext:     p.Source.Ext,
		},
		Monitored:      p.Monitored,
		ExpectedPerDay: expected,
		QuotaIfQueued:  p.QuotaIfQueued,
	}, nil
}

func buildSlot(profile string, idx int, s slotYAML) (types.Slot, error) {
	if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
		return types.Slot{}, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("profile %q: slot %d has invalid time %02d:%02d", profile, idx, s.Hour, s.Minute), nil)
	}

	kind := types.PostKind(s.Kind)
	switch kind {
	case "":
		kind = types.KindReel
	case types.KindReel, types.KindImage, types.KindCarousel:
	default:
		return types.Slot{}, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("profile %q: slot %d has unknown kind %q", profile, idx, s.Kind), nil)
	}

	count := s.AssetCount
	if count == 0 {
		count = 1
		if kind == types.KindCarousel {
			count = defaultCarouselSize
		}
	}
	if kind != types.KindCarousel && count != 1 {
		return types.Slot{}, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("profile %q: slot %d kind %s must consume exactly one asset", profile, idx, kind), nil)
	}

	return types.Slot{
		Hour:       s.Hour,
		Minute:     s.Minute,
		Title:      s.Title,
		Kind:       kind,
		AssetCount: count,
	}, nil
}

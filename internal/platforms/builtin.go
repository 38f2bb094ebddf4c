package platforms

import "shipyard/internal/naming"

const (
	mib = int64(1) << 20
	gib = int64(1) << 30
)

const safeChars = `a-zA-Z0-9_\-.`

func builtinSpecs() []Spec {
	return []Spec{
		{
			ID:           "instagram",
			Name:         "Instagram",
			ImageFormats: []string{"jpg", "png"},
			VideoFormats: []string{"mp4", "mov"},
			MaxFileSize:  650 * mib,
			Dimensions: []Dimension{
				{Width: 1080, Height: 1080, AspectRatio: "1:1", Purpose: "feed"},
				{Width: 1080, Height: 1350, AspectRatio: "4:5", Purpose: "portrait"},
				{Width: 1080, Height: 1920, AspectRatio: "9:16", Purpose: "story"},
			},
			Naming:  naming.Rules{Pattern: "{campaign}_{purpose}_{version}.{format}", MaxLength: 100, AllowedChars: safeChars},
			Quality: Quality{Target: 85, Compression: "lossy", ColorSpace: "sRGB"},
		},
		{
			ID:           "facebook",
			Name:         "Facebook",
			ImageFormats: []string{"jpg", "png", "gif"},
			VideoFormats: []string{"mp4", "mov"},
			MaxFileSize:  4 * gib,
			Dimensions: []Dimension{
				{Width: 1200, Height: 628, AspectRatio: "1.91:1", Purpose: "link"},
				{Width: 1080, Height: 1080, AspectRatio: "1:1", Purpose: "feed"},
				{Width: 1080, Height: 1920, AspectRatio: "9:16", Purpose: "story"},
			},
			Naming:  naming.Rules{Pattern: "{campaign}_{name}_{version}.{format}", MaxLength: 255, AllowedChars: safeChars},
			Quality: Quality{Target: 85, Compression: "lossy", ColorSpace: "sRGB"},
		},
		{
			ID:           "youtube",
			Name:         "YouTube",
			ImageFormats: []string{"jpg", "png"},
			VideoFormats: []string{"mp4", "mov", "avi", "webm"},
			MaxFileSize:  256 * gib,
			Dimensions: []Dimension{
				{Width: 1920, Height: 1080, AspectRatio: "16:9", Purpose: "video"},
				{Width: 1280, Height: 720, AspectRatio: "16:9", Purpose: "thumbnail"},
				{Width: 1080, Height: 1920, AspectRatio: "9:16", Purpose: "short"},
			},
			Naming:  naming.Rules{Pattern: "{campaign}_{name}_{version}.{format}", MaxLength: 100, AllowedChars: safeChars},
			Quality: Quality{Target: 90, Compression: "adaptive", ColorSpace: "Rec.709"},
		},
		{
			ID:           "tiktok",
			Name:         "TikTok",
			ImageFormats: []string{"jpg", "png"},
			VideoFormats: []string{"mp4", "mov"},
			MaxFileSize:  287 * mib,
			Dimensions: []Dimension{
				{Width: 1080, Height: 1920, AspectRatio: "9:16", Purpose: "feed"},
			},
			Naming:  naming.Rules{Pattern: "{campaign}_{version}.{format}", MaxLength: 80, AllowedChars: safeChars},
			Quality: Quality{Target: 80, Compression: "lossy", ColorSpace: "sRGB"},
		},
		{
			ID:           "linkedin",
			Name:         "LinkedIn",
			ImageFormats: []string{"jpg", "png", "gif"},
			VideoFormats: []string{"mp4"},
			MaxFileSize:  200 * mib,
			Dimensions: []Dimension{
				{Width: 1200, Height: 627, AspectRatio: "1.91:1", Purpose: "link"},
				{Width: 1080, Height: 1080, AspectRatio: "1:1", Purpose: "feed"},
			},
			Naming:  naming.Rules{Pattern: "{campaign}_{name}_{version}.{format}", MaxLength: 150, AllowedChars: safeChars},
			Quality: Quality{Target: 85, Compression: "lossy", ColorSpace: "sRGB"},
		},
		{
			ID:           "twitter",
			Name:         "X (Twitter)",
			ImageFormats: []string{"jpg", "png", "gif", "webp"},
			VideoFormats: []string{"mp4", "mov"},
			MaxFileSize:  512 * mib,
			Dimensions: []Dimension{
				{Width: 1600, Height: 900, AspectRatio: "16:9", Purpose: "feed"},
				{Width: 1080, Height: 1080, AspectRatio: "1:1", Purpose: "square"},
			},
			Naming:  naming.Rules{Pattern: "{campaign}_{name}_{version}.{format}", MaxLength: 100, AllowedChars: safeChars},
			Quality: Quality{Target: 80, Compression: "lossy", ColorSpace: "sRGB"},
		},
	}
}

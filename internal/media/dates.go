// Package media files photos and videos into a date-based directory layout.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

const exifLayout = "2006:01:02 15:04:05"

// DateInfo is the capture date of a file and the camera model it came from.
type DateInfo struct {
	Time  time.Time
	Model string
	// FromFallback is set when no capture date was found and the
	// modification time stands in for it.
	FromFallback bool
}

// Filename conventions of phones and cameras that carry the capture date.
var (
	windowsPhoneVideo = regexp.MustCompile(`WP_([0-9]{8})_[0-9]{3}\.mp4`)
	androidVideo      = regexp.MustCompile(`(VID|TRIM)_([0-9]{8}_[0-9]{6})\.(mp4|mkv|3gp)`)
	androidImage      = regexp.MustCompile(`IMG_([0-9]{8}_[0-9]{6})\.(jpg|JPG)`)
	timestampVideo    = regexp.MustCompile(`([12][890][0-9]{6}_[012][0-9][0-6][0-9][0-6][0-9])\.mp4`)
	panasonicRaw      = regexp.MustCompile(`.+\.rw2$`)
)

// CaptureDate works out when the file at path was taken. Known filename
// patterns win over EXIF. Files without either fall back to their
// modification time.
func CaptureDate(path string, ignoreExif bool) (DateInfo, error) {
	base := filepath.Base(path)

	if m := windowsPhoneVideo.FindStringSubmatch(base); m != nil {
		t, err := time.ParseInLocation("20060102", m[1], time.Local)
		if err != nil {
			return DateInfo{}, fmt.Errorf("failed to parse date in %s: %w", base, err)
		}
		return DateInfo{Time: t, Model: "WP"}, nil
	}

	if m := androidVideo.FindStringSubmatch(base); m != nil {
		t, err := time.ParseInLocation("20060102_150405", m[2], time.Local)
		if err != nil {
			return DateInfo{}, fmt.Errorf("failed to parse date in %s: %w", base, err)
		}
		return DateInfo{Time: t, Model: "video"}, nil
	}

	if m := androidImage.FindStringSubmatch(base); m != nil {
		info, err := exifDate(path, ignoreExif)
		if err != nil {
			return DateInfo{}, err
		}
		if info.Model == "" || info.FromFallback {
			t, err := time.ParseInLocation("20060102_150405", m[1], time.Local)
			if err != nil {
				return DateInfo{}, fmt.Errorf("failed to parse date in %s: %w", base, err)
			}
			info.Time = t
			info.FromFallback = false
			if info.Model == "" {
				info.Model = "img"
			}
		}
		return info, nil
	}

	if m := timestampVideo.FindStringSubmatch(base); m != nil {
		t, err := time.ParseInLocation("20060102_150405", m[1], time.Local)
		if err != nil {
			return DateInfo{}, fmt.Errorf("failed to parse date in %s: %w", base, err)
		}
		return DateInfo{Time: t, Model: "video"}, nil
	}

	if panasonicRaw.MatchString(base) {
		t, err := modTime(path)
		if err != nil {
			return DateInfo{}, err
		}
		return DateInfo{Time: t, Model: "raw"}, nil
	}

	return exifDate(path, ignoreExif)
}

// exifDate reads DateTimeOriginal and Model from the file's EXIF block.
// Missing or unreadable EXIF is not an error: the modification time is used
// and FromFallback is set.
func exifDate(path string, ignoreExif bool) (DateInfo, error) {
	mtime, err := modTime(path)
	if err != nil {
		return DateInfo{}, err
	}
	if ignoreExif {
		return DateInfo{Time: mtime}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return DateInfo{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return DateInfo{Time: mtime, FromFallback: true}, nil
	}

	info := DateInfo{Model: exifString(x, exif.Model)}

	if t, err := time.ParseInLocation(exifLayout, exifString(x, exif.DateTimeOriginal), time.Local); err == nil {
		info.Time = t
	} else if t, err := x.DateTime(); err == nil {
		info.Time = t
	} else {
		info.Time = mtime
		info.FromFallback = true
	}

	return info, nil
}

func exifString(x *exif.Exif, field exif.FieldName) string {
	tag, err := x.Get(field)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return info.ModTime(), nil
}

// purgeModel keeps only characters that are safe in a file name.
func purgeModel(model string) string {
	var b strings.Builder
	for _, r := range model {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// datedName builds the renamed file name, e.g. 2014-09-04_101530_FinePix.jpg.
// The original base name stands in for a missing model.
func datedName(path string, info DateInfo) string {
	ext := filepath.Ext(path)
	model := purgeModel(info.Model)
	if model == "" {
		model = strings.TrimSuffix(filepath.Base(path), ext)
	}
	return info.Time.Format("2006-01-02_150405") + "_" + model + strings.ToLower(ext)
}

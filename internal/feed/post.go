package feed

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-date format shared by composite ids, post
// dates and image filenames.
const DateLayout = "2006-01-02"

const snippetMaxLen = 30

// Post is the canonical persisted unit of channel content. The composite id
// doubles as the document key and the snapshot sort key, so its
// lexicographic order must match (date, native id) order.
type Post struct {
	ID    string  `bson:"_id" json:"id"`
	Date  string  `bson:"date" json:"date"`
	Text  string  `bson:"text" json:"text"`
	Image *string `bson:"image" json:"image"`
}

// CompositeID builds the sortable "YYYY-MM-DD_NNNNN" key from a message
// timestamp and its native numeric id. The date is taken in loc. Pure and
// deterministic; native ids wider than width still format but break the
// fixed-width ordering guarantee (see FitsPadWidth).
func CompositeID(date time.Time, nativeID int, width int, loc *time.Location) string {
	return fmt.Sprintf("%s_%0*d", date.In(loc).Format(DateLayout), width, nativeID)
}

// FitsPadWidth reports whether a native id stays within the zero-padded
// digit capacity. Callers are expected to flag, not reject, overflowing ids.
func FitsPadWidth(nativeID, width int) bool {
	return nativeID >= 0 && len(strconv.Itoa(nativeID)) <= width
}

// SplitCompositeID recovers the (date, native id) pair from a composite id
// by splitting on the last underscore.
func SplitCompositeID(id string) (string, int, error) {
	i := strings.LastIndex(id, "_")
	if i <= 0 || i == len(id)-1 {
		return "", 0, fmt.Errorf("malformed composite id %q", id)
	}
	nativeID, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed composite id %q: %w", id, err)
	}
	return id[:i], nativeID, nil
}

var nonWordRun = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// SanitizeSnippet collapses runs of non-alphanumeric characters to single
// underscores and truncates the result, for use in image filenames.
func SanitizeSnippet(text string, max int) string {
	s := nonWordRun.ReplaceAllString(text, "_")
	s = strings.Trim(s, "_")
	if r := []rune(s); len(r) > max {
		s = string(r[:max])
	}
	return strings.Trim(s, "_")
}

// PhotoFileName names an uploaded image after its message so the remote
// host stays human-debuggable: date, native id, then a text snippet.
func PhotoFileName(date time.Time, nativeID int, text string, loc *time.Location) string {
	name := fmt.Sprintf("%s_%d", date.In(loc).Format(DateLayout), nativeID)
	if snippet := SanitizeSnippet(text, snippetMaxLen); snippet != "" {
		name += "_" + snippet
	}
	return name + ".jpg"
}

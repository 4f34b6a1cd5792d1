// Package environment captures the environment variables frozen into the
// bundle as compile-time constants.
package environment

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/wolfeidau/keystone/internal/versions"
)

// DefaultSubmissionID is stamped when SUBMISSIONID is unset.
const DefaultSubmissionID = "00000-00000-00000-00000-00000"

// Recognized environment keys.
const (
	KeyBaseURL           = "MSDyn365Commerce_BASEURL"
	KeyChannelID         = "MSDyn365Commerce_CHANNELID"
	KeyCatalogID         = "MSDyn365Commerce_CATALOGID"
	KeyOUN               = "MSDyn365Commerce_OUN"
	KeyBaseImageURL      = "MSDyn365Commerce_BASEIMAGEURL"
	KeyRatingsReviewsURL = "MSDyn365Commerce_RATINGSREVIEWS_URL"
	KeyRatingsReviewsID  = "MSDyn365Commerce_RATINGSREVIEWS_ID"
	KeySubmissionID      = "SUBMISSIONID"
	KeyMinLogLevel       = "SDK_MIN_LOG_LEVEL"
	KeyReactVersion      = "REACT_VERSION"
	KeyReactDOMVersion   = "REACT_DOM_VERSION"
	KeyHost              = "HOST"
)

// Snapshot is captured once at the start of a build. Unset string values are
// nil and stamp as undefined; unset or non-numeric ids stamp as null.
type Snapshot struct {
	BaseURL           *string
	ChannelID         *float64
	CatalogID         *float64
	OUN               *string
	BaseImageURL      *string
	RatingsReviewsURL *string
	RatingsReviewsID  *string
	SubmissionID      *string
	MinLogLevel       float64
	ReactVersion      *string
	ReactDOMVersion   *string
	Host              string

	// SubmissionV2 omits the submission id constant; the alternate submission
	// pipeline injects its own.
	SubmissionV2 bool
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Capture reads every recognized key through lookup.
func Capture(lookup LookupFunc, submissionV2 bool) Snapshot {
	str := func(key string) *string {
		if v, ok := lookup(key); ok {
			return &v
		}
		return nil
	}
	num := func(key string) *float64 {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		v = strings.TrimSpace(v)
		if v == "" {
			// a set but empty number is zero
			var zero float64
			return &zero
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		return &f
	}

	s := Snapshot{
		BaseURL:           str(KeyBaseURL),
		ChannelID:         num(KeyChannelID),
		CatalogID:         num(KeyCatalogID),
		OUN:               str(KeyOUN),
		BaseImageURL:      str(KeyBaseImageURL),
		RatingsReviewsURL: str(KeyRatingsReviewsURL),
		RatingsReviewsID:  str(KeyRatingsReviewsID),
		SubmissionID:      str(KeySubmissionID),
		ReactVersion:      str(KeyReactVersion),
		ReactDOMVersion:   str(KeyReactDOMVersion),
		Host:              "localhost",
		SubmissionV2:      submissionV2,
	}
	if level := num(KeyMinLogLevel); level != nil {
		s.MinLogLevel = *level
	}
	if host, ok := lookup(KeyHost); ok && host != "" {
		s.Host = host
	}
	return s
}

// Defines returns the compile-time constants keyed by the expression they
// replace, each value a JavaScript literal.
func (s Snapshot) Defines(stamp versions.Stamp) map[string]string {
	defines := make(map[string]string)
	set := func(key, value string) { defines["process.env."+key] = value }

	set(KeyBaseURL, strLiteral(s.BaseURL))
	set(KeyChannelID, numLiteral(s.ChannelID))
	set(KeyCatalogID, numLiteral(s.CatalogID))
	set(KeyOUN, strLiteral(s.OUN))
	set(KeyBaseImageURL, strLiteral(s.BaseImageURL))
	set("MSDyn365Commerce_RSVERSION", literal(stamp.ProxyClient))
	set("MSDyn365Commerce_SDK_VERSION", literal(stamp.SDK))
	set("MSDyn365Commerce_SSK_VERSION", literal(stamp.ModuleLibrary))
	set(KeyRatingsReviewsURL, strLiteral(s.RatingsReviewsURL))
	set(KeyRatingsReviewsID, strLiteral(s.RatingsReviewsID))
	set("MSDyn365Commerce_RCSUVERSION", literal(stamp.RCSU))
	set(KeyReactVersion, strLiteral(s.ReactVersion))
	set(KeyReactDOMVersion, strLiteral(s.ReactDOMVersion))
	set(KeyMinLogLevel, strconv.FormatFloat(s.MinLogLevel, 'f', -1, 64))

	if !s.SubmissionV2 {
		id := DefaultSubmissionID
		if s.SubmissionID != nil {
			id = *s.SubmissionID
		}
		set(KeySubmissionID, literal(id))
	}

	return defines
}

func literal(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "undefined"
	}
	return string(data)
}

func strLiteral(v *string) string {
	if v == nil {
		return "undefined"
	}
	return literal(*v)
}

func numLiteral(v *float64) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

package trackselect

import "errors"

// ErrNoMatchingTrack is returned by select_videos/select_audios/
// select_subtitles when the requested filters empty the candidate set.
var ErrNoMatchingTrack = errors.New("trackselect: no matching track")

// ErrNoOriginalLanguage is returned by select_by_language when the "orig"
// sentinel is requested, multiple distinct languages are present, and none
// is marked original-language.
var ErrNoOriginalLanguage = errors.New("trackselect: no track marked original language")

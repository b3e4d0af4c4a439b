package parser

import (
	"encoding/xml"
	"net/url"
	"testing"
	"time"

	"github.com/matryer/is"
)

const sampleMPD = `<?xml version="1.0"?>
<MPD mediaPresentationDuration="PT1H30M15S">
  <Period>
    <AdaptationSet mimeType="video/mp4" contentType="video" width="1920" height="1080">
      <ContentProtection schemeIdUri="urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed" default_KID="01020304-0506-0708-0910-111213141516">
        <cenc:pssh>AAAANHBzc2gAAAAA7e+LqXnWSs6jyCfc1R0h7QAAABQIARIQASAwQFBgcHCAkKCws9DQAA==</cenc:pssh>
      </ContentProtection>
      <Representation id="v1" bandwidth="5000000" codecs="avc1.640028">
        <SegmentTemplate media="chunk-$Number$.m4s" initialization="init.mp4" timescale="1" duration="4" startNumber="1" />
      </Representation>
    </AdaptationSet>
    <AdaptationSet mimeType="audio/mp4" contentType="audio" lang="en">
      <Representation id="a1" bandwidth="128000" codecs="mp4a.40.2" />
    </AdaptationSet>
  </Period>
</MPD>`

func TestConvertMPDBasicTracks(t *testing.T) {
	is := is.New(t)

	var mpd MPD
	is.NoErr(xml.Unmarshal([]byte(sampleMPD), &mpd))

	base, err := url.Parse("https://cdn.example.com/content/manifest.mpd")
	is.NoErr(err)

	ts, err := convertMPD(&mpd, base, "dash-test")
	is.NoErr(err) // convertMPD must accept a minimal two-AdaptationSet manifest

	is.Equal(len(ts.Videos), 1)
	is.Equal(len(ts.Audios), 1)
	is.True(ts.Videos[0].Encrypted)
	is.Equal(ts.Videos[0].Width, 1920)
	is.Equal(ts.Videos[0].Height, 1080)
	is.True(len(ts.Videos[0].PsshWV) > 0)
	is.Equal(ts.Audios[0].Language, "en")
	is.Equal(ts.Duration, 1*time.Hour+30*time.Minute+15*time.Second)
}

func TestXsdDurationNil(t *testing.T) {
	is := is.New(t)
	is.Equal(xsdDuration(nil), time.Duration(0))
}

func TestProtectionFromSetExtractsDefaultKID(t *testing.T) {
	is := is.New(t)

	cps := []ContentProtection{
		{
			SchemeIdUri: "urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed",
			DefaultKID:  "01020304-0506-0708-0910-111213141516",
			PSSH:        "AAAANA==",
		},
	}
	kid, psshWV, _, encrypted := protectionFromSet(cps)
	is.True(encrypted)
	is.Equal(len(kid), 32) // normalized KID is 32 hex characters
	is.True(len(psshWV) > 0)
}

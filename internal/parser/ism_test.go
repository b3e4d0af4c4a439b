package parser

import (
	"encoding/xml"
	"net/url"
	"testing"
	"time"

	"github.com/matryer/is"
)

const sampleISM = `<?xml version="1.0"?>
<SmoothStreamingMedia MajorVersion="2" MinorVersion="0" Duration="150000000" TimeScale="10000000">
  <Protection>
    <ProtectionHeader SystemID="9a04f079-9840-4286-ab92-e65be0885f95">PAIAAAEAAQAA</ProtectionHeader>
  </Protection>
  <StreamIndex Type="video" Name="video" Url="QualityLevels({bitrate})/Fragments(video={start time})">
    <QualityLevel Index="0" Bitrate="3000000" FourCC="AVC1" MaxWidth="1920" MaxHeight="1080" />
    <c t="0" d="20000000" />
    <c d="20000000" />
  </StreamIndex>
  <StreamIndex Type="audio" Name="audio" Url="QualityLevels({bitrate})/Fragments(audio={start time})">
    <QualityLevel Index="0" Bitrate="128000" FourCC="AACL" Channels="2" SamplingRate="48000" />
    <c t="0" d="20000000" />
  </StreamIndex>
</SmoothStreamingMedia>`

func TestConvertISMBasicTracks(t *testing.T) {
	is := is.New(t)

	var ism SmoothStreamingMedia
	is.NoErr(xml.Unmarshal([]byte(sampleISM), &ism))

	base, err := url.Parse("https://cdn.example.com/content/Manifest")
	is.NoErr(err)

	ts, err := convertISM(&ism, base, "ism-test")
	is.NoErr(err) // must accept one video and one audio StreamIndex

	is.Equal(len(ts.Videos), 1)
	is.Equal(len(ts.Audios), 1)
	is.Equal(ts.Videos[0].Width, 1920)
	is.Equal(ts.Videos[0].Height, 1080)
	is.Equal(ts.Duration, 15*time.Second)
	is.Equal(len(ts.Videos[0].Fragments.Segments), 2)
}

func TestISMDurationDefaultsTimescale(t *testing.T) {
	is := is.New(t)
	ism := &SmoothStreamingMedia{Duration: 10_000_000}
	is.Equal(ismDuration(ism), time.Second)
}

func TestExpandChunkTimesAccumulates(t *testing.T) {
	is := is.New(t)
	chunks := []ISMChunk{{StartTime: 0, Duration: 100}, {Duration: 100}, {Duration: 50}}
	starts := expandChunkTimes(chunks)
	is.Equal(starts, []int64{0, 100, 200})
}

func TestISMParserCanParse(t *testing.T) {
	is := is.New(t)
	p := NewISMParser()
	is.True(p.CanParse("https://cdn.example.com/content/Manifest"))
	is.True(p.CanParse("https://cdn.example.com/content.ism"))
	is.True(!p.CanParse("https://cdn.example.com/video.mpd"))
}

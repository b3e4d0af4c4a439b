package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/matryer/is"
)

func TestRegistryDispatchesByExtension(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(sampleMediaPlaylist))
	}))
	defer srv.Close()

	_, err := r.Parse(context.Background(), srv.URL+"/video.m3u8", "registry-test", nil)
	is.NoErr(err) // .m3u8 URL must dispatch to the HLS parser

	_, err = r.Parse(context.Background(), "https://cdn.example.com/no-match", "registry-test", nil)
	is.True(err != nil) // an unrecognized extension has no parser to dispatch to
}

func TestParseByteRangeBothForms(t *testing.T) {
	is := is.New(t)

	hls := parseByteRange("1000@500")
	is.True(hls != nil)
	is.Equal(hls.Start, int64(500))
	is.Equal(hls.End, int64(1499))

	dash := parseByteRange("0-999")
	is.True(dash != nil)
	is.Equal(dash.Start, int64(0))
	is.Equal(dash.End, int64(999))
}

func TestResolveURLPassesThroughAbsolute(t *testing.T) {
	is := is.New(t)
	base, err := url.Parse("https://cdn.example.com/content/manifest.mpd")
	is.NoErr(err)

	is.Equal(resolveURL(base, "https://other.example.com/seg.mp4"), "https://other.example.com/seg.mp4")
	is.Equal(resolveURL(base, "seg1.m4s"), "https://cdn.example.com/content/seg1.m4s")
}

func TestExpandTemplateSubstitutions(t *testing.T) {
	is := is.New(t)
	out := expandTemplate("chunk-$RepresentationID$-$Number%05d$.m4s", "v1", 42, 0)
	is.Equal(out, "chunk-v1-00042.m4s")
}

func TestParseHexBytes(t *testing.T) {
	is := is.New(t)
	is.Equal(parseHexBytes("0x0102ff"), []byte{0x01, 0x02, 0xff})
}

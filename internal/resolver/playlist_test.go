package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseM3U(t *testing.T) {
	body := []byte("#EXTM3U\r\n" +
		"#EXTINF:-1,Radio One\r\n" +
		"http://radio.example.com:8000/live\r\n" +
		"#EXTINF:-1,Radio Two\n" +
		"https://cdn.example.org/stream.mp3?sid=1  \n" +
		"\"http://quoted.example.net/a\"\n")

	got := ParseM3U(body)
	assert.Equal(t, []string{
		"http://radio.example.com:8000/live",
		"https://cdn.example.org/stream.mp3?sid=1",
		"http://quoted.example.net/a",
	}, got)
}

func TestParseM3UEmpty(t *testing.T) {
	assert.Empty(t, ParseM3U([]byte("#EXTM3U\n#EXTINF:-1,nothing\n")))
}

func TestParsePLS(t *testing.T) {
	body := []byte("[playlist]\n" +
		"NumberOfEntries=2\n" +
		"File1=http://a.example.com/one\n" +
		"Title1=One\n" +
		"File2=http://b.example.com/two\t\n" +
		"Version=2\n")

	assert.Equal(t, []string{
		"http://a.example.com/one",
		"http://b.example.com/two",
	}, ParsePLS(body))
}

func TestParseXSPF(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<playlist version="1" xmlns="http://xspf.org/ns/0/">
  <trackList>
    <track>
      <title>First</title>
      <location>http://one.example.com/stream</location>
      <location>http://one-backup.example.com/stream</location>
    </track>
    <track>
      <location> http://two.example.com/stream </location>
    </track>
    <track>
      <title>no location</title>
    </track>
  </trackList>
</playlist>`)

	got, err := ParseXSPF(body)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://one.example.com/stream",
		"http://two.example.com/stream",
	}, got)
}

func TestParseXSPFInvalid(t *testing.T) {
	_, err := ParseXSPF([]byte("not xml <"))
	assert.Error(t, err)
}

func TestExpandMMS(t *testing.T) {
	assert.Equal(t, []string{
		"mmsh://media.example.com/live",
		"mmst://media.example.com/live",
		"rtsp://media.example.com/live",
	}, ExpandMMS("mms://media.example.com/live"))

	assert.Nil(t, ExpandMMS("http://media.example.com/live"))
}

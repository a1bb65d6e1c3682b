package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURL(t *testing.T) {
	s := &Store{cfg: Config{Bucket: "capd", Region: "ap-southeast-1"}}
	assert.Equal(t, "https://capd.s3.ap-southeast-1.amazonaws.com/exit-site/a.png", s.URL("exit-site/a.png"))

	s.cfg.Endpoint = "http://minio:9000/"
	s.cfg.UsePathStyle = true
	assert.Equal(t, "http://minio:9000/capd/exit-site/a.png", s.URL("exit-site/a.png"))
}

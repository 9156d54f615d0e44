package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileTreeSortedPathsDeterministic(t *testing.T) {
	tr := newFileTree()
	tr.add("etc/nginx/nginx.conf")
	tr.add("etc/cron.d/job")
	tr.add("usr/sbin/nginx")
	tr.add("etc/nginx/mime.types")

	got := tr.sortedPaths()
	want := []string{
		"etc/cron.d/job",
		"etc/nginx/mime.types",
		"etc/nginx/nginx.conf",
		"usr/sbin/nginx",
	}
	assert.Equal(t, want, got)
}

func TestFileTreeIgnoresDuplicateAdd(t *testing.T) {
	tr := newFileTree()
	tr.add("etc/nginx/nginx.conf")
	tr.add("etc/nginx/nginx.conf")
	assert.Len(t, tr.sortedPaths(), 1)
}

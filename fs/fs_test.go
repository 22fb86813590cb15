package appfs

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS(t *testing.T) {
	var files []string
	err := fs.WalkDir(FS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"migrations/00001_school.sql",
		"migrations/00002_notifications.sql",
		"templates/notification/_base.gohtml",
		"templates/notification/grade_sent.gohtml",
		"templates/notification/task_created.gohtml",
		"templates/notification/task_deadline.gohtml",
		"templates/notification/task_updated.gohtml",
	}, files)
}

package views

import (
	"context"
	"io/ioutil"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/notebookgrader/grader-client/grader"
)

// Participants is the instructor page listing the students of an assignment
type Participants struct {
	env Env
	url string
}

// NewParticipants creates the page of assignment id
func NewParticipants(env Env, id string) *Participants {
	env = env.withDefaults()
	return &Participants{env: env, url: grader.RoutesFor(env.Client.BaseURL(), id).DownloadGrades}
}

// Download writes the grades CSV into dir under the name chosen by the
// server and returns its path
func (p *Participants) Download(ctx context.Context, dir string) (string, error) {
	file, err := p.env.Client.DownloadGrades(ctx, p.url)
	if err != nil {
		return "", p.env.fail(ctx, err)
	}

	name := filepath.Base(filepath.Clean("/" + file.Filename))
	if name == "/" || name == "." {
		name = "grades.csv"
	}
	path := filepath.Join(dir, name)
	if err := ioutil.WriteFile(path, []byte(file.CSVFile), 0o644); err != nil {
		return "", errors.Wrap(err, "writing grades")
	}
	p.env.Log.Info("grades saved", path)
	return path, nil
}

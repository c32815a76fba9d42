// Package report exports a study summary as YAML.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thalesfsp/hotune"
)

// Summary is the exported view of a study.
type Summary struct {
	Study     string  `yaml:"study"`
	ID        string  `yaml:"id"`
	Direction string  `yaml:"direction"`
	Trials    []Trial `yaml:"trials"`
	Best      *Trial  `yaml:"best,omitempty"`
	Counts    Counts  `yaml:"counts"`
}

// Counts tallies trials by state.
type Counts struct {
	Complete int `yaml:"complete"`
	Fail     int `yaml:"fail"`
	Running  int `yaml:"running,omitempty"`
}

// Trial is one trial of the summary.
type Trial struct {
	Number    int       `yaml:"number"`
	State     string    `yaml:"state"`
	Params    yaml.Node `yaml:"params"`
	Value     *float64  `yaml:"value,omitempty"`
	Error     string    `yaml:"error,omitempty"`
	Started   string    `yaml:"started"`
	Completed string    `yaml:"completed,omitempty"`
	Duration  string    `yaml:"duration,omitempty"`
}

// FromStudy builds the summary of study.
func FromStudy(study *hotune.Study) Summary {
	s := Summary{
		Study:     study.Name(),
		ID:        study.ID(),
		Direction: study.Direction().String(),
	}

	for _, rec := range study.Trials() {
		s.Trials = append(s.Trials, fromRecord(rec))

		switch rec.State {
		case hotune.TrialComplete:
			s.Counts.Complete++
		case hotune.TrialFail:
			s.Counts.Fail++
		default:
			s.Counts.Running++
		}
	}

	if best, err := study.BestTrial(); err == nil {
		t := fromRecord(best)
		s.Best = &t
	}

	return s
}

func fromRecord(rec hotune.TrialRecord) Trial {
	t := Trial{
		Number:  rec.Number,
		State:   rec.State.String(),
		Params:  paramsNode(rec.Params),
		Error:   rec.Err,
		Started: rec.DatetimeStart.UTC().Format(time.RFC3339Nano),
	}

	if rec.State == hotune.TrialComplete {
		v := rec.Value
		t.Value = &v
	}

	if rec.DatetimeComplete != nil {
		t.Completed = rec.DatetimeComplete.UTC().Format(time.RFC3339Nano)
		t.Duration = rec.Duration().String()
	}

	return t
}

// paramsNode renders params as a mapping that keeps draw order.
func paramsNode(params []hotune.Param) yaml.Node {
	node := yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	for _, p := range params {
		var value yaml.Node
		if err := value.Encode(p.Value); err != nil {
			value = yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprint(p.Value)}
		}

		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Name},
			&value,
		)
	}

	return node
}

// Encode writes summary to w.
func Encode(w io.Writer, summary Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return enc.Close()
}

// Write writes summary to path.
func Write(path string, summary Summary) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	return Encode(f, summary)
}

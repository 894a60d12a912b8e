package engine

import (
	"github.com/vk/pipegrid/internal/archive"
	"github.com/vk/pipegrid/internal/finalizer"
)

func toRecord(res *RunResult) archive.RunRecord {
	rec := archive.RunRecord{
		ID:         res.RunID,
		Pipeline:   res.Pipeline,
		Status:     res.Status.String(),
		ExitCode:   res.ExitCode(),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Summary:    res.FirstFailure,
	}
	for i, name := range res.Order {
		n := res.Nodes[name]
		rec.Nodes = append(rec.Nodes, archive.NodeRecord{
			Name:       name,
			Position:   i,
			State:      n.State.String(),
			Error:      errString(n.Err),
			StartedAt:  n.StartedAt,
			FinishedAt: n.FinishedAt,
		})
	}
	if f := res.Finalizer; f.State != finalizer.None {
		rec.Nodes = append(rec.Nodes, archive.NodeRecord{
			Name:       f.Node,
			Position:   len(res.Order),
			Finalizer:  true,
			State:      f.State.String(),
			Error:      errString(f.Err),
			StartedAt:  f.StartedAt,
			FinishedAt: f.FinishedAt,
		})
	}
	return rec
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

package services

import (
	"context"
	"log"
	"time"

	"agency_tracker/internal/models"
)

type TaskNode struct {
	models.Task
	Attachments []models.Attachment `json:"attachments"`
}

type PhaseNode struct {
	models.Phase
	CompletionPercentage int                 `json:"completion_percentage"`
	IsComplete           bool                `json:"is_complete"`
	Tasks                []TaskNode          `json:"tasks"`
	Attachments          []models.Attachment `json:"attachments"`
}

// ProjectTree is the read model served to the public tracking page and the
// admin project view.
type ProjectTree struct {
	Project     models.Project      `json:"project"`
	Phases      []PhaseNode         `json:"phases"`
	Attachments []models.Attachment `json:"attachments"`
	Progress    ProgressSummary     `json:"progress"`
}

// TreeCache stores assembled project trees. *redis.Client satisfies it.
type TreeCache interface {
	GetProjectTree(ctx context.Context, projectID uint, dest interface{}) (bool, error)
	SetProjectTree(ctx context.Context, projectID uint, tree interface{}, ttl time.Duration) error
	InvalidateProject(ctx context.Context, projectID uint) error
}

// BuildProjectTree nests tasks under their phases and distributes attachments.
// phases and tasks are expected in sort_order; the order is preserved.
func BuildProjectTree(project models.Project, phases []models.Phase, tasks []models.Task, attachments []models.Attachment) *ProjectTree {
	tasksByPhase := groupTasksByPhase(tasks)

	byTask := make(map[uint][]models.Attachment)
	byPhase := make(map[uint][]models.Attachment)
	for _, a := range attachments {
		switch {
		case a.TaskID != nil:
			byTask[*a.TaskID] = append(byTask[*a.TaskID], a)
		case a.PhaseID != nil:
			byPhase[*a.PhaseID] = append(byPhase[*a.PhaseID], a)
		}
	}

	tree := &ProjectTree{
		Project:     project,
		Phases:      make([]PhaseNode, 0, len(phases)),
		Attachments: nonNilAttachments(attachments),
		Progress:    SummarizeProject(phases, tasksByPhase),
	}

	for _, p := range phases {
		phaseTasks := tasksByPhase[p.ID]
		node := PhaseNode{
			Phase:                p,
			CompletionPercentage: PhaseCompletion(phaseTasks),
			IsComplete:           IsPhaseComplete(p.Status, phaseTasks),
			Tasks:                make([]TaskNode, 0, len(phaseTasks)),
			Attachments:          nonNilAttachments(byPhase[p.ID]),
		}
		for _, t := range phaseTasks {
			node.Tasks = append(node.Tasks, TaskNode{Task: t, Attachments: nonNilAttachments(byTask[t.ID])})
		}
		tree.Phases = append(tree.Phases, node)
	}
	return tree
}

func nonNilAttachments(a []models.Attachment) []models.Attachment {
	if a == nil {
		return []models.Attachment{}
	}
	return a
}

func invalidateTree(ctx context.Context, cache TreeCache, projectID uint) {
	if cache == nil {
		return
	}
	if err := cache.InvalidateProject(ctx, projectID); err != nil {
		log.Printf("Warning: failed to invalidate cached tree for project %d: %v", projectID, err)
	}
}

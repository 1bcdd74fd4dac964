package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/khal/internal/core/craft"
	"github.com/example/khal/internal/core/scoring"
	"github.com/example/khal/internal/core/task"
	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/ports/primary"
	"github.com/example/khal/internal/ports/secondary"
)

// Entity types recorded in the change history.
const (
	entityAffair   = "affair"
	entityInterest = "interest"
	entityTask     = "task"
	entityCraft    = "craft"
	entityLaw      = "law"
	entityImport   = "import"
)

// WriteAffair creates or updates an affair. The fragility score is always
// recomputed from the merged stakes and risk.
func (s *SyncServiceImpl) WriteAffair(ctx context.Context, req primary.WriteAffairRequest) (*primary.WriteResult[models.Affair], error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	id := s.resolveID(req.ID)

	var out models.Affair
	modTime, err := s.write(ctx, "write_affair", req.LastSeenModifiedAt, func(tx secondary.StoreTx) error {
		current, err := tx.GetAffair(ctx, id)
		found, err := lookup(err)
		if err != nil {
			return err
		}

		a := models.Affair{ID: id, DomainID: models.DefaultDomainID, Status: models.StatusNotStarted}
		if found {
			a = *current
		}
		if req.DomainID != nil {
			a.DomainID = models.DomainIDFromName(*req.DomainID)
		}
		setString(&a.Title, req.Title)
		setString(&a.Description, req.Description)
		setString(&a.Timeline, req.Timeline)
		setFloat(&a.Stakes, req.Stakes)
		setFloat(&a.Risk, req.Risk)
		setFloat(&a.CompletionPct, req.CompletionPct)
		if req.Status != nil {
			a.Status = *req.Status
		}
		if a.Title == "" {
			return models.NewValidationError("Title is required")
		}
		a.FragilityScore = scoring.FragilityScore(a.Stakes, a.Risk)

		if err := s.ensureDomain(ctx, tx, a.DomainID); err != nil {
			return err
		}
		if err := tx.UpsertAffair(ctx, &a); err != nil {
			return err
		}
		if err := s.logChange(ctx, tx, entityAffair, id, action(found)); err != nil {
			return err
		}

		stored, err := tx.GetAffair(ctx, id)
		if err != nil {
			return err
		}
		out = *stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &primary.WriteResult[models.Affair]{Entity: out, ModifiedAt: modTime}, nil
}

// WriteInterest creates or updates an interest.
func (s *SyncServiceImpl) WriteInterest(ctx context.Context, req primary.WriteInterestRequest) (*primary.WriteResult[models.Interest], error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	id := s.resolveID(req.ID)

	var out models.Interest
	modTime, err := s.write(ctx, "write_interest", req.LastSeenModifiedAt, func(tx secondary.StoreTx) error {
		current, err := tx.GetInterest(ctx, id)
		found, err := lookup(err)
		if err != nil {
			return err
		}

		in := models.Interest{ID: id, DomainID: models.DefaultDomainID, Status: models.StatusNotStarted}
		if found {
			in = *current
		}
		if req.DomainID != nil {
			in.DomainID = models.DomainIDFromName(*req.DomainID)
		}
		setString(&in.Title, req.Title)
		setString(&in.Description, req.Description)
		setFloat(&in.Stakes, req.Stakes)
		setFloat(&in.Risk, req.Risk)
		setFloat(&in.Convexity, req.Convexity)
		setString(&in.Asymmetry, req.Asymmetry)
		setString(&in.Upside, req.Upside)
		setString(&in.Downside, req.Downside)
		setString(&in.Notes, req.Notes)
		if req.Status != nil {
			in.Status = *req.Status
		}
		if in.Title == "" {
			return models.NewValidationError("Title is required")
		}

		if err := s.ensureDomain(ctx, tx, in.DomainID); err != nil {
			return err
		}
		if err := tx.UpsertInterest(ctx, &in); err != nil {
			return err
		}
		if err := s.logChange(ctx, tx, entityInterest, id, action(found)); err != nil {
			return err
		}

		stored, err := tx.GetInterest(ctx, id)
		if err != nil {
			return err
		}
		out = *stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &primary.WriteResult[models.Interest]{Entity: out, ModifiedAt: modTime}, nil
}

// WriteTask creates or updates a task. A write that leaves the task DONE
// while changing its status or dependencies is rejected unless every
// dependency is already DONE.
func (s *SyncServiceImpl) WriteTask(ctx context.Context, req primary.WriteTaskRequest) (*primary.WriteResult[models.Task], error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	id := s.resolveID(req.ID)

	var out models.Task
	modTime, err := s.write(ctx, "write_task", req.LastSeenModifiedAt, func(tx secondary.StoreTx) error {
		current, err := tx.GetTask(ctx, id)
		found, err := lookup(err)
		if err != nil {
			return err
		}

		t := models.Task{
			ID:            id,
			Horizon:       models.DefaultHorizon,
			Status:        models.StatusNotStarted,
			DependencyIDs: []string{},
		}
		if found {
			t = current.Clone()
		} else if issues := missingTaskFields(req); len(issues) > 0 {
			return models.NewValidationError(issues...)
		}
		if req.SourceType != nil {
			t.SourceType = *req.SourceType
		}
		setString(&t.SourceID, req.SourceID)
		setString(&t.ParentTaskID, req.ParentTaskID)
		if req.DependencyIDs != nil {
			t.DependencyIDs = append([]string{}, (*req.DependencyIDs)...)
		}
		setString(&t.Title, req.Title)
		setString(&t.Notes, req.Notes)
		if req.Horizon != nil {
			t.Horizon = *req.Horizon
		}
		setString(&t.DueDate, req.DueDate)
		if req.Status != nil {
			t.Status = *req.Status
		}
		if req.EffortEstimate != nil {
			v := *req.EffortEstimate
			t.EffortEstimate = &v
		}
		if t.Title == "" {
			return models.NewValidationError("Title is required")
		}

		parentExists := false
		if t.ParentTaskID != "" {
			_, err := tx.GetTask(ctx, t.ParentTaskID)
			if parentExists, err = lookup(err); err != nil {
				return err
			}
		}
		guard := task.CanWriteTask(task.WriteTaskContext{
			TaskID:        id,
			ParentTaskID:  t.ParentTaskID,
			ParentExists:  parentExists,
			DependencyIDs: t.DependencyIDs,
		})
		if err := guard.Error(); err != nil {
			return err
		}

		if t.Status == models.StatusDone && (req.Status != nil || req.DependencyIDs != nil) {
			if err := s.checkDependencies(ctx, tx, t); err != nil {
				return err
			}
		}

		if err := tx.UpsertTask(ctx, &t); err != nil {
			return err
		}
		if err := s.logChange(ctx, tx, entityTask, id, action(found)); err != nil {
			return err
		}

		stored, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		out = *stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &primary.WriteResult[models.Task]{Entity: out, ModifiedAt: modTime}, nil
}

func missingTaskFields(req primary.WriteTaskRequest) []string {
	var issues []string
	if req.Title == nil {
		issues = append(issues, "Title is required")
	}
	if req.SourceType == nil {
		issues = append(issues, "SourceType is required")
	}
	if req.SourceID == nil {
		issues = append(issues, "SourceID is required")
	}
	return issues
}

// checkDependencies fails with a *models.DependencyError when t cannot be
// DONE given the tasks currently stored.
func (s *SyncServiceImpl) checkDependencies(ctx context.Context, tx secondary.StoreTx, t models.Task) error {
	all, err := tx.ListTasks(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]models.Task, len(all))
	statuses := make(map[string]models.Status, len(all))
	for _, other := range all {
		byID[other.ID] = other
		statuses[other.ID] = other.Status
	}
	if task.CanTransitionToDone(t, byID) {
		return nil
	}
	return &models.DependencyError{
		TaskID: t.ID,
		Pending: task.PendingDependencies(task.CompleteTaskContext{
			TaskID:        t.ID,
			DependencyIDs: t.DependencyIDs,
			Statuses:      statuses,
		}),
	}
}

// WriteCraft creates or updates a craft's name and description.
func (s *SyncServiceImpl) WriteCraft(ctx context.Context, req primary.WriteCraftRequest) (*primary.WriteResult[models.Craft], error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	id := s.resolveID(req.ID)

	var out models.Craft
	modTime, err := s.write(ctx, "write_craft", req.LastSeenModifiedAt, func(tx secondary.StoreTx) error {
		current, err := tx.GetCraft(ctx, id)
		found, err := lookup(err)
		if err != nil {
			return err
		}

		c := models.Craft{ID: id}
		if found {
			c = *current
		}
		setString(&c.Name, req.Name)
		setString(&c.Description, req.Description)
		if c.Name == "" {
			return models.NewValidationError("Name is required")
		}

		if err := tx.UpsertCraft(ctx, &c); err != nil {
			return err
		}
		if err := s.logChange(ctx, tx, entityCraft, id, action(found)); err != nil {
			return err
		}

		stored, err := tx.GetCraft(ctx, id)
		if err != nil {
			return err
		}
		out = *stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &primary.WriteResult[models.Craft]{Entity: out, ModifiedAt: modTime}, nil
}

// WriteCraftEntity upserts one entity of a craft level. For levels that
// reference a child level the stored links are replaced by RefIDs in
// order; a nil RefIDs leaves the entity without references.
func (s *SyncServiceImpl) WriteCraftEntity(ctx context.Context, req primary.WriteCraftEntityRequest) (*primary.WriteResult[models.CraftEntity], error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	id := s.resolveID(req.ID)
	level := req.Level

	var out models.CraftEntity
	modTime, err := s.write(ctx, "write_craft_entity", req.LastSeenModifiedAt, func(tx secondary.StoreTx) error {
		if _, err := tx.GetCraft(ctx, req.CraftID); err != nil {
			return err
		}

		current, err := tx.GetCraftEntity(ctx, level, id)
		found, err := lookup(err)
		if err != nil {
			return err
		}

		e := models.CraftEntity{ID: id, CraftID: req.CraftID, Level: level}
		if level == models.LevelHeap {
			e.Type = models.DefaultHeapType
		}
		if found {
			if current.CraftID != req.CraftID {
				return models.NewValidationError(fmt.Sprintf("%s %s belongs to craft %s", level, id, current.CraftID))
			}
			e = *current
		}
		setString(&e.Title, req.Title)
		setString(&e.Type, req.Type)
		setString(&e.URL, req.URL)
		setString(&e.Notes, req.Notes)
		setString(&e.Description, req.Description)
		setString(&e.Hedge, req.Hedge)
		setString(&e.Edge, req.Edge)
		setString(&e.Content, req.Content)
		if e.Title == "" {
			e.Title = level.DefaultTitle()
		}
		if level == models.LevelHeap && e.Type == "" {
			e.Type = models.DefaultHeapType
		}

		if err := s.setRefs(ctx, tx, &e, req.RefIDs); err != nil {
			return err
		}
		if err := s.logChange(ctx, tx, entityCraft+"_"+string(level), id, action(found)); err != nil {
			return err
		}

		stored, err := tx.GetCraftEntity(ctx, level, id)
		if err != nil {
			return err
		}
		out = *stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &primary.WriteResult[models.CraftEntity]{Entity: out, ModifiedAt: modTime}, nil
}

// ReplaceCraftLinks replaces the references of an existing entity without
// touching its scalar fields.
func (s *SyncServiceImpl) ReplaceCraftLinks(ctx context.Context, req primary.ReplaceCraftLinksRequest) (*primary.WriteResult[models.CraftEntity], error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if _, ok := req.Level.Child(); !ok {
		return nil, models.NewValidationError(fmt.Sprintf("%s cannot reference other entities", req.Level))
	}

	var out models.CraftEntity
	modTime, err := s.write(ctx, "replace_craft_links", req.LastSeenModifiedAt, func(tx secondary.StoreTx) error {
		current, err := tx.GetCraftEntity(ctx, req.Level, req.SourceID)
		if err != nil {
			return err
		}
		if err := s.setRefs(ctx, tx, current, req.TargetIDs); err != nil {
			return err
		}
		if err := s.logChange(ctx, tx, entityCraft+"_"+string(req.Level), req.SourceID, models.ActionUpdate); err != nil {
			return err
		}

		stored, err := tx.GetCraftEntity(ctx, req.Level, req.SourceID)
		if err != nil {
			return err
		}
		out = *stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &primary.WriteResult[models.CraftEntity]{Entity: out, ModifiedAt: modTime}, nil
}

// setRefs checks refs against the child level of e's craft, writes e and
// replaces its links.
func (s *SyncServiceImpl) setRefs(ctx context.Context, tx secondary.StoreTx, e *models.CraftEntity, refs []string) error {
	child, hasChild := e.Level.Child()
	childIDs := map[string]bool{}
	if hasChild {
		ids, err := tx.ListCraftEntityIDs(ctx, e.CraftID, child)
		if err != nil {
			return err
		}
		for _, id := range ids {
			childIDs[id] = true
		}
	}

	guard := craft.CanSetRefs(craft.RefContext{Level: e.Level, RefIDs: refs, ChildIDs: childIDs})
	if err := guard.Error(); err != nil {
		return err
	}

	e.RefIDs = append([]string{}, refs...)
	if err := tx.UpsertCraftEntity(ctx, e); err != nil {
		return err
	}
	if hasChild {
		return tx.ReplaceLinks(ctx, e.Level, e.ID, refs)
	}
	return nil
}

// WriteLaw creates or updates a law. A nil CraftIDs keeps the stored
// associations; otherwise every id must name an existing craft.
func (s *SyncServiceImpl) WriteLaw(ctx context.Context, req primary.WriteLawRequest) (*primary.WriteResult[models.Law], error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	id := s.resolveID(req.ID)

	var out models.Law
	modTime, err := s.write(ctx, "write_law", req.LastSeenModifiedAt, func(tx secondary.StoreTx) error {
		current, err := tx.GetLaw(ctx, id)
		found, err := lookup(err)
		if err != nil {
			return err
		}

		l := models.Law{ID: id, CraftIDs: []string{}}
		if found {
			l = *current
		}
		setString(&l.Name, req.Name)
		setString(&l.Description, req.Description)
		setString(&l.VolatilitySource, req.VolatilitySource)
		if l.Name == "" {
			return models.NewValidationError("Name is required")
		}

		if req.CraftIDs != nil {
			var issues []string
			seen := map[string]bool{}
			for _, craftID := range *req.CraftIDs {
				if seen[craftID] {
					issues = append(issues, fmt.Sprintf("craft %s listed more than once", craftID))
					continue
				}
				seen[craftID] = true
				_, err := tx.GetCraft(ctx, craftID)
				exists, err := lookup(err)
				if err != nil {
					return err
				}
				if !exists {
					issues = append(issues, fmt.Sprintf("craft %s not found", craftID))
				}
			}
			if len(issues) > 0 {
				return models.NewValidationError(issues...)
			}
			l.CraftIDs = append([]string{}, (*req.CraftIDs)...)
		}

		if err := tx.UpsertLaw(ctx, &l); err != nil {
			return err
		}
		if err := s.logChange(ctx, tx, entityLaw, id, action(found)); err != nil {
			return err
		}

		stored, err := tx.GetLaw(ctx, id)
		if err != nil {
			return err
		}
		out = *stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &primary.WriteResult[models.Law]{Entity: out, ModifiedAt: modTime}, nil
}

// Import copies every entity of the backend at req.SourcePath into this
// store inside a single update. Existing entities with the same ids are
// overwritten.
func (s *SyncServiceImpl) Import(ctx context.Context, req primary.ImportRequest) (*primary.ImportResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if s.opener == nil {
		return nil, fmt.Errorf("import is not configured")
	}
	if strings.TrimSpace(req.SourcePath) == s.store.Path() {
		return nil, models.NewValidationError("cannot import a backend into itself")
	}

	source, err := s.opener(req.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open import source: %w", err)
	}
	loaded, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}
	state := loaded.State

	result := &primary.ImportResult{Skipped: loaded.Skipped}
	_, err = s.write(ctx, "import", nil, func(tx secondary.StoreTx) error {
		if err := checkImportParents(ctx, tx, state.Tasks); err != nil {
			return err
		}
		for i := range state.Domains {
			if err := tx.UpsertDomain(ctx, &state.Domains[i]); err != nil {
				return err
			}
		}
		for i := range state.Affairs {
			a := state.Affairs[i]
			a.FragilityScore = scoring.FragilityScore(a.Stakes, a.Risk)
			if err := s.ensureDomain(ctx, tx, a.DomainID); err != nil {
				return err
			}
			if err := tx.UpsertAffair(ctx, &a); err != nil {
				return err
			}
		}
		for i := range state.Interests {
			if err := s.ensureDomain(ctx, tx, state.Interests[i].DomainID); err != nil {
				return err
			}
			if err := tx.UpsertInterest(ctx, &state.Interests[i]); err != nil {
				return err
			}
		}
		for i := range state.Tasks {
			if err := tx.UpsertTask(ctx, &state.Tasks[i]); err != nil {
				return err
			}
		}
		for i := range state.Crafts {
			if err := importCraft(ctx, tx, state.Crafts[i]); err != nil {
				return err
			}
		}
		for i := range state.Laws {
			if err := tx.UpsertLaw(ctx, &state.Laws[i]); err != nil {
				return err
			}
		}
		if len(state.Narrative.Blocks) > 0 {
			if err := tx.ReplaceNarrative(ctx, state.Narrative); err != nil && !isValidation(err) {
				return err
			}
		}
		return s.logChange(ctx, tx, entityImport, req.SourcePath, models.ActionCreate)
	})
	if err != nil {
		return nil, err
	}

	result.Domains = len(state.Domains)
	result.Affairs = len(state.Affairs)
	result.Interests = len(state.Interests)
	result.Tasks = len(state.Tasks)
	result.Crafts = len(state.Crafts)
	result.Laws = len(state.Laws)
	s.logger.Info("import finished", "source", req.SourcePath,
		"affairs", result.Affairs, "interests", result.Interests, "tasks", result.Tasks,
		"crafts", result.Crafts, "laws", result.Laws)
	return result, nil
}

// checkImportParents rejects an import whose tasks name a parent that is
// neither imported nor already stored.
func checkImportParents(ctx context.Context, tx secondary.StoreTx, tasks []models.Task) error {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}
	existing, err := tx.ListTasks(ctx)
	if err != nil {
		return err
	}
	for _, t := range existing {
		known[t.ID] = true
	}

	var issues []string
	for _, t := range tasks {
		if t.ParentTaskID != "" && !known[t.ParentTaskID] {
			issues = append(issues, fmt.Sprintf("task %s: parent task %s not found", t.ID, t.ParentTaskID))
		}
	}
	if len(issues) > 0 {
		return models.NewValidationError(issues...)
	}
	return nil
}

func importCraft(ctx context.Context, tx secondary.StoreTx, c models.Craft) error {
	if err := tx.UpsertCraft(ctx, &c); err != nil {
		return err
	}
	entities, links := craft.Flatten(c)
	for i := range entities {
		if err := tx.UpsertCraftEntity(ctx, &entities[i]); err != nil {
			return err
		}
	}

	targets := make(map[string][]string, len(links))
	for _, l := range links {
		key := entityRef(l.Level, l.SourceID)
		targets[key] = append(targets[key], l.TargetID)
	}
	for _, e := range entities {
		if _, ok := e.Level.Child(); !ok {
			continue
		}
		if err := tx.ReplaceLinks(ctx, e.Level, e.ID, targets[entityRef(e.Level, e.ID)]); err != nil {
			return err
		}
	}
	return nil
}

func entityRef(level models.CraftLevel, id string) string {
	return string(level) + "/" + id
}

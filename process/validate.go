package process

import adaptarrdb "adaptarr.dev/db"

// Validate enforces every structural rule, in order, returning the first
// violation found. A nil result means s is safe to Create.
func Validate(s *Structure) *ValidateError {
	if err := validateNames(s); err != nil {
		return err
	}
	if err := validateIndices(s); err != nil {
		return err
	}
	if err := validatePermissionCoherence(s); err != nil {
		return err
	}
	if err := validateReachability(s); err != nil {
		return err
	}
	if isFinal(s, s.Start) {
		return newErr(StartIsFinal)
	}
	return nil
}

func validateNames(s *Structure) *ValidateError {
	if s.Name == "" {
		return newErr(EmptyProcessName)
	}

	seenSlot := map[string]bool{}
	for i, slot := range s.Slots {
		if slot.Name == "" {
			e := newErr(EmptySlotName)
			e.Slot = i
			return e
		}
		if seenSlot[slot.Name] {
			e := newErr(DuplicateSlotName)
			e.Slot = i
			return e
		}
		seenSlot[slot.Name] = true
	}

	seenStep := map[string]bool{}
	for i, step := range s.Steps {
		if step.Name == "" {
			e := newErr(EmptyStepName)
			e.Step = i
			return e
		}
		if seenStep[step.Name] {
			e := newErr(DuplicateStepName)
			e.Step = i
			return e
		}
		seenStep[step.Name] = true

		seenLink := map[string]bool{}
		for l, link := range step.Links {
			if link.Name == "" {
				e := newErr(EmptyLinkName)
				e.Step, e.Link = i, l
				return e
			}
			if seenLink[link.Name] {
				e := newErr(DuplicateLinkName)
				e.Step, e.Link = i, l
				return e
			}
			seenLink[link.Name] = true
		}
	}
	return nil
}

func validateIndices(s *Structure) *ValidateError {
	if s.Start < 0 || s.Start >= len(s.Steps) {
		return newErr(InvalidStartStep)
	}

	for i, step := range s.Steps {
		for _, ss := range step.Slots {
			if ss.SlotIndex < 0 || ss.SlotIndex >= len(s.Slots) {
				e := newErr(InvalidStepSlot)
				e.Step, e.Slot = i, ss.SlotIndex
				return e
			}
		}
		for l, link := range step.Links {
			if link.ToStep < 0 || link.ToStep >= len(s.Steps) {
				e := newErr(InvalidLinkTarget)
				e.Step, e.Link = i, l
				return e
			}
			if link.ToStep == i {
				e := newErr(LoopedLink)
				e.Step, e.Link = i, l
				return e
			}
			if link.SlotIndex < 0 || link.SlotIndex >= len(s.Slots) {
				e := newErr(InvalidLinkSlot)
				e.Step, e.Link = i, l
				return e
			}
			used := false
			for _, ss := range step.Slots {
				if ss.SlotIndex == link.SlotIndex {
					used = true
					break
				}
			}
			if !used {
				e := newErr(UnusableLink)
				e.Step, e.Link = i, l
				return e
			}
		}
	}
	return nil
}

func validatePermissionCoherence(s *Structure) *ValidateError {
	for i, step := range s.Steps {
		var editCount, proposeCount, acceptCount int
		for _, ss := range step.Slots {
			switch ss.Permission {
			case adaptarrdb.PermEdit:
				editCount++
			case adaptarrdb.PermProposeChanges:
				proposeCount++
			case adaptarrdb.PermAcceptChanges:
				acceptCount++
			}
		}
		if editCount > 1 || proposeCount > 1 {
			e := newErr(PermissionDuplication)
			e.Step = i
			return e
		}
		if editCount > 0 && proposeCount > 0 {
			e := newErr(ConflictingPermissions)
			e.Step = i
			return e
		}
		if (proposeCount > 0) != (acceptCount > 0) {
			e := newErr(MissingRequiredPermission)
			e.Step = i
			return e
		}
	}
	return nil
}

// isFinal reports whether step has no outgoing links.
func isFinal(s *Structure, step int) bool {
	return len(s.Steps[step].Links) == 0
}

func validateReachability(s *Structure) *ValidateError {
	reachableFromStart := bfs(s, s.Start)
	for i := range s.Steps {
		if !reachableFromStart[i] {
			e := newErr(UnreachableState)
			e.Step = i
			return e
		}
	}

	for i := range s.Steps {
		if !canReachFinal(s, i) {
			e := newErr(IsolatedStep)
			e.Step = i
			return e
		}
	}
	return nil
}

// bfs returns the set of steps reachable from start by forward links.
func bfs(s *Structure, start int) map[int]bool {
	visited := map[int]bool{start: true}
	queue := []int{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, link := range s.Steps[cur].Links {
			if !visited[link.ToStep] {
				visited[link.ToStep] = true
				queue = append(queue, link.ToStep)
			}
		}
	}
	return visited
}

// canReachFinal reports whether some final step is reachable from step.
func canReachFinal(s *Structure, step int) bool {
	visited := map[int]bool{}
	var walk func(int) bool
	walk = func(cur int) bool {
		if isFinal(s, cur) {
			return true
		}
		if visited[cur] {
			return false
		}
		visited[cur] = true
		for _, link := range s.Steps[cur].Links {
			if walk(link.ToStep) {
				return true
			}
		}
		return false
	}
	return walk(step)
}

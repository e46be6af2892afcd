package dflat

// Status reports what Commit would do right now, without taking the
// lock and without writing anything.  While a commit is in flight, or
// one was interrupted, Status returns a *PendingCommitError instead of
// a diff that might mix two states.
func (h *Home) Status() (change *Change, err error) {
	err = h.checkPending()
	if err != nil {
		return
	}
	change, err = h.pending(false)
	if err != nil {
		// a commit that started meanwhile explains a missing tree
		if perr := h.checkPending(); perr != nil {
			return nil, perr
		}
		return nil, err
	}
	err = h.checkPending()
	if err != nil {
		return nil, err
	}
	cur, err := h.Current()
	if err != nil {
		return nil, err
	}
	if cur != change.From {
		h.logger().Debugf("current moved from %s to %s during status", change.From, cur)
		return nil, &PendingCommitError{From: change.From, To: cur}
	}
	return
}

func (h *Home) checkPending() (err error) {
	j, err := h.readJournal()
	if err != nil {
		return
	}
	if j != nil {
		return &PendingCommitError{From: j.From, To: j.To}
	}
	return
}

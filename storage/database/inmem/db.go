package inmemdb

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

// StateVersion is bumped whenever the persisted State layout changes.
const StateVersion = 1

// Collection names a part of the State that is stored on its own.
type Collection string

const (
	UsersCollection          Collection = "users"
	ExamsCollection          Collection = "exams"
	SubmissionsCollection    Collection = "submissions"
	PdfSubmissionsCollection Collection = "pdfSubmissions"
	AttemptsCollection       Collection = "attempts"
)

// Collections lists every collection of the State.
var Collections = []Collection{
	UsersCollection, ExamsCollection, SubmissionsCollection, PdfSubmissionsCollection, AttemptsCollection,
}

type (
	// Persister durably stores snapshots of the DB.
	Persister interface {
		// Save replaces the stored form of the changed collections, which are the only ones set in state.
		// PDF payloads are not part of it.
		Save(state State, changed []Collection) error
		SavePdfPayload(id string, payload []byte) error
		// Load returns the stored state (nil when there is none) along with every stored PDF payload.
		Load() (*State, map[string][]byte, error)
	}

	// State is the persisted form of the DB.
	State struct {
		Users          []UserRecord               `json:"users"`
		Exams          []exam.Exam                `json:"exams"`
		Submissions    []submission.Submission    `json:"submissions"`
		PdfSubmissions []submission.PdfSubmission `json:"pdfSubmissions"`
		Attempts       []submission.Attempt       `json:"attempts"`
	}

	// UserRecord is a user along with its password hash, which User never serialises.
	UserRecord struct {
		user.User
		PasswordHash []byte `json:"password_hash"`
	}

	// DB holds every collection behind a single lock.
	DB struct {
		mu          sync.RWMutex
		users       map[string]*user.User
		exams       map[string]*exam.Exam
		submissions map[string]*submission.Submission
		pdfs        map[string]*submission.PdfSubmission
		payloads    map[string][]byte
		attempts    map[string]*submission.Attempt
		persister   Persister
	}
)

// Open returns an empty DB, or the state loaded from persister when one is given.
func Open(persister Persister) (*DB, error) {
	db := &DB{
		users:       make(map[string]*user.User),
		exams:       make(map[string]*exam.Exam),
		submissions: make(map[string]*submission.Submission),
		pdfs:        make(map[string]*submission.PdfSubmission),
		payloads:    make(map[string][]byte),
		attempts:    make(map[string]*submission.Attempt),
		persister:   persister,
	}
	if persister == nil {
		return db, nil
	}

	state, payloads, err := persister.Load()
	if err != nil {
		return nil, errors.Wrap(err, "loading state")
	}
	if state != nil {
		db.restore(*state)
	}
	for id, payload := range payloads {
		if _, ok := db.pdfs[id]; ok {
			db.payloads[id] = payload
		}
	}
	return db, nil
}

func (db *DB) restore(state State) {
	for _, rec := range state.Users {
		usr := rec.User
		usr.PasswordHash = rec.PasswordHash
		db.users[usr.ID] = &usr
	}
	for _, ex := range state.Exams {
		ex := cloneExam(ex)
		db.exams[ex.ID] = &ex
	}
	for _, sub := range state.Submissions {
		sub := cloneSubmission(sub)
		db.submissions[sub.ID] = &sub
	}
	for _, pdf := range state.PdfSubmissions {
		pdf := pdf
		pdf.Payload = nil
		db.pdfs[pdf.ID] = &pdf
	}
	for _, att := range state.Attempts {
		att := cloneAttempt(att)
		db.attempts[att.ID] = &att
	}
}

// Field returns a pointer to the slice of state holding c, or nil for an unknown collection.
func (s *State) Field(c Collection) interface{} {
	switch c {
	case UsersCollection:
		return &s.Users
	case ExamsCollection:
		return &s.Exams
	case SubmissionsCollection:
		return &s.Submissions
	case PdfSubmissionsCollection:
		return &s.PdfSubmissions
	case AttemptsCollection:
		return &s.Attempts
	}
	return nil
}

// Snapshot returns a copy of the whole state.
func (db *DB) Snapshot() State {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.snapshot(Collections...)
}

// snapshot copies the given collections only.
func (db *DB) snapshot(collections ...Collection) State {
	var state State
	for _, c := range collections {
		switch c {
		case UsersCollection:
			state.Users = make([]UserRecord, 0, len(db.users))
			for _, usr := range db.users {
				state.Users = append(state.Users, UserRecord{User: *usr, PasswordHash: usr.PasswordHash})
			}
		case ExamsCollection:
			state.Exams = make([]exam.Exam, 0, len(db.exams))
			for _, ex := range db.exams {
				state.Exams = append(state.Exams, cloneExam(*ex))
			}
		case SubmissionsCollection:
			state.Submissions = make([]submission.Submission, 0, len(db.submissions))
			for _, sub := range db.submissions {
				state.Submissions = append(state.Submissions, cloneSubmission(*sub))
			}
		case PdfSubmissionsCollection:
			state.PdfSubmissions = make([]submission.PdfSubmission, 0, len(db.pdfs))
			for _, pdf := range db.pdfs {
				state.PdfSubmissions = append(state.PdfSubmissions, *pdf)
			}
		case AttemptsCollection:
			state.Attempts = make([]submission.Attempt, 0, len(db.attempts))
			for _, att := range db.attempts {
				state.Attempts = append(state.Attempts, cloneAttempt(*att))
			}
		}
	}
	return state
}

// IsEmpty reports whether the DB holds neither users nor exams.
func (db *DB) IsEmpty() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.users) == 0 && len(db.exams) == 0
}

// commit hands the changed collections to the persister. When they cannot be saved, undo
// reverts the in-memory change so that memory never runs ahead of the storage.
// Callers must hold the write lock.
func (db *DB) commit(undo func(), changed ...Collection) error {
	if db.persister == nil {
		return nil
	}
	if err := db.persister.Save(db.snapshot(changed...), changed); err != nil {
		undo()
		return errors.Wrap(err, "persisting state")
	}
	return nil
}

// Reset drops every record; meant for tests.
func (db *DB) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	users, exams, subs, pdfs, payloads, atts := db.users, db.exams, db.submissions, db.pdfs, db.payloads, db.attempts
	db.users = make(map[string]*user.User)
	db.exams = make(map[string]*exam.Exam)
	db.submissions = make(map[string]*submission.Submission)
	db.pdfs = make(map[string]*submission.PdfSubmission)
	db.payloads = make(map[string][]byte)
	db.attempts = make(map[string]*submission.Attempt)
	return db.commit(func() {
		db.users, db.exams, db.submissions, db.pdfs, db.payloads, db.attempts = users, exams, subs, pdfs, payloads, atts
	}, Collections...)
}

func cloneExam(ex exam.Exam) exam.Exam {
	qs := make([]exam.Question, len(ex.Questions))
	for i, q := range ex.Questions {
		q.Options = append([]string(nil), q.Options...)
		qs[i] = q
	}
	ex.Questions = qs
	return ex
}

func cloneAnswers(answers []submission.Answer) []submission.Answer {
	cloned := make([]submission.Answer, len(answers))
	for i, a := range answers {
		if a.IsCorrect != nil {
			isCorrect := *a.IsCorrect
			a.IsCorrect = &isCorrect
		}
		cloned[i] = a
	}
	return cloned
}

func cloneSubmission(sub submission.Submission) submission.Submission {
	sub.Answers = cloneAnswers(sub.Answers)
	if sub.Marks != nil {
		marks := *sub.Marks
		sub.Marks = &marks
	}
	if sub.Percentage != nil {
		pct := *sub.Percentage
		sub.Percentage = &pct
	}
	if sub.Passed != nil {
		passed := *sub.Passed
		sub.Passed = &passed
	}
	if sub.EvaluatedAt != nil {
		at := *sub.EvaluatedAt
		sub.EvaluatedAt = &at
	}
	return sub
}

func cloneAttempt(att submission.Attempt) submission.Attempt {
	att.Answers = cloneAnswers(att.Answers)
	return att
}

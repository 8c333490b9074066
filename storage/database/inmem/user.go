package inmemdb

import (
	"strings"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

var userOrderingFields = map[string]comparator[user.User]{
	"id":         func(a, b user.User) int { return strings.Compare(a.ID, b.ID) },
	"name":       func(a, b user.User) int { return compareStrings(a.Name, b.Name) },
	"role":       func(a, b user.User) int { return compareStrings(a.Role, b.Role) },
	"roll_no":    func(a, b user.User) int { return compareStrings(a.RollNo, b.RollNo) },
	"username":   func(a, b user.User) int { return compareStrings(a.Username, b.Username) },
	"email":      func(a, b user.User) int { return compareStrings(a.Email, b.Email) },
	"department": func(a, b user.User) int { return compareStrings(a.Department, b.Department) },
	"is_active":  func(a, b user.User) int { return compareBools(a.IsActive, b.IsActive) },
	"created_at": func(a, b user.User) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b user.User) int { return compareTimes(a.UpdatedAt, b.UpdatedAt) },
	"last_login": func(a, b user.User) int { return compareTimes(a.LastLogin, b.LastLogin) },
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) checkUniqueness(rollNo, username, email string, excludedUsers ...user.User) error {
	isExcluded := func(usr *user.User) bool {
		for _, excl := range excludedUsers {
			if excl.ID == usr.ID {
				return true
			}
		}
		return false
	}

	for _, usr := range repo.db.users {
		if isExcluded(usr) {
			continue
		}
		if rollNo != "" && strings.EqualFold(usr.RollNo, rollNo) {
			return user.ErrRollNoExists
		}
		if username != "" && strings.EqualFold(usr.Username, username) {
			return user.ErrUsernameExists
		}
		if email != "" && strings.EqualFold(usr.Email, email) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(rollNo, username, email string, excludedUsers ...user.User) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.checkUniqueness(rollNo, username, email, excludedUsers...)
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkUniqueness(usr.RollNo, usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}
	repo.db.users[usr.ID] = &usr
	if err := repo.db.commit(func() { delete(repo.db.users, usr.ID) }, UsersCollection); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(id string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) getBy(match func(usr *user.User) bool) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if match(usr) {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByRollNo(rollNo string) (user.User, error) {
	if rollNo == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getBy(func(usr *user.User) bool { return strings.EqualFold(usr.RollNo, rollNo) })
}

func (repo *userRepository) GetUserByUsername(username string) (user.User, error) {
	if username == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getBy(func(usr *user.User) bool { return strings.EqualFold(usr.Username, username) })
}

func (repo *userRepository) GetUserByEmail(email string) (user.User, error) {
	if email == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getBy(func(usr *user.User) bool { return strings.EqualFold(usr.Email, email) })
}

func (repo *userRepository) FilterUsers(filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0)
	search := strings.ToLower(filter.Search)
	for _, u := range repo.query() {
		// users with search keyword matching any Name, RollNo, Username or Email ?
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.RollNo), search) &&
			!strings.Contains(strings.ToLower(u.Username), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Department != "" && !strings.EqualFold(u.Department, filter.Department) {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		users = append(users, u)
	}

	sortRecords(users, ordering, userOrderingFields, core.DBOrdering{Field: "created_at"})
	return users, nil
}

func (repo *userRepository) UpdateUser(usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	origUsr, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.RollNo, usr.Username, usr.Email, usr); err != nil {
		return user.User{}, err
	}

	// identity fields never change
	usr.Role = origUsr.Role
	usr.RollNo = origUsr.RollNo
	usr.Username = origUsr.Username
	usr.CreatedAt = origUsr.CreatedAt
	if usr.PasswordHash == nil {
		usr.PasswordHash = origUsr.PasswordHash
	}

	repo.db.users[usr.ID] = &usr
	if err := repo.db.commit(func() { repo.db.users[usr.ID] = origUsr }, UsersCollection); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ids ...string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	deleted := make([]*user.User, 0, len(ids))
	for _, id := range ids {
		if usr, ok := repo.db.users[id]; ok {
			deleted = append(deleted, usr)
			delete(repo.db.users, id)
		}
	}
	return repo.db.commit(func() {
		for _, usr := range deleted {
			repo.db.users[usr.ID] = usr
		}
	}, UsersCollection)
}

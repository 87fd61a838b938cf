package directory

import (
	"errors"
	"sort"
	"sync"

	"github.com/c-pro/geche"

	"tasktango/internal/models"
)

var ErrNoStableID = errors.New("user has no stable id")

// Directory holds the latest known record of every chat participant, keyed by stringId.
// Records are only mutated through its methods; every mutation is announced to subscribers.
type Directory struct {
	users *geche.Locker[string, *models.User]

	subMu       sync.RWMutex
	subscribers map[int]func(models.UserChange)
	nextSubID   int
}

func New() *Directory {
	return &Directory{
		users:       geche.NewLocker[string, *models.User](geche.NewMapCache[string, *models.User]()),
		subscribers: make(map[int]func(models.UserChange)),
	}
}

// Subscribe registers fn for every future change. The returned func unsubscribes.
func (d *Directory) Subscribe(fn func(models.UserChange)) func() {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	id := d.nextSubID
	d.nextSubID++
	d.subscribers[id] = fn
	return func() {
		d.subMu.Lock()
		defer d.subMu.Unlock()
		delete(d.subscribers, id)
	}
}

func (d *Directory) notify(changes []models.UserChange) {
	if len(changes) == 0 {
		return
	}
	d.subMu.RLock()
	subs := make([]func(models.UserChange), 0, len(d.subscribers))
	for _, fn := range d.subscribers {
		subs = append(subs, fn)
	}
	d.subMu.RUnlock()

	for _, change := range changes {
		for _, fn := range subs {
			fn(change)
		}
	}
}

// Upsert stores a user snapshot, e.g. the sender embedded in a pushed message.
// IsCurrentUser of a stored record is never changed by later snapshots.
func (d *Directory) Upsert(user models.User) error {
	if !user.HasStableID() {
		return ErrNoStableID
	}

	tx := d.users.Lock()
	existing, err := tx.Get(user.StringID)
	if err != nil {
		stored := user
		tx.Set(user.StringID, &stored)
		tx.Unlock()
		d.notify([]models.UserChange{{Kind: models.UserChangeProfile, User: user}})
		return nil
	}

	var changes []models.UserChange
	updated := *existing
	updated.ID = user.ID
	updated.Username = user.Username
	updated.Email = user.Email
	updated.Name = user.Name
	updated.AvatarURL = user.AvatarURL
	updated.Bio = user.Bio
	updated.Contact = user.Contact
	if profileChanged(*existing, updated) {
		changes = append(changes, models.UserChange{Kind: models.UserChangeProfile})
	}
	if existing.IsOnline != user.IsOnline {
		updated.IsOnline = user.IsOnline
		changes = append(changes, models.UserChange{Kind: models.UserChangeOnline})
	}
	if existing.IsPremium != user.IsPremium {
		updated.IsPremium = user.IsPremium
		changes = append(changes, models.UserChange{Kind: models.UserChangePremium})
	}
	*existing = updated
	tx.Unlock()

	for i := range changes {
		changes[i].User = updated
	}
	d.notify(changes)
	return nil
}

func profileChanged(a, b models.User) bool {
	return a.ID != b.ID ||
		a.Username != b.Username ||
		a.Email != b.Email ||
		a.Name != b.Name ||
		!equalOpt(a.AvatarURL, b.AvatarURL) ||
		!equalOpt(a.Bio, b.Bio) ||
		!equalOpt(a.Contact, b.Contact)
}

func equalOpt(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (d *Directory) Get(stringID string) (models.User, error) {
	tx := d.users.Lock()
	defer tx.Unlock()

	u, err := tx.Get(stringID)
	if err != nil {
		return models.User{}, models.ErrNotFound
	}
	return *u, nil
}

func (d *Directory) SetOnline(stringID string, online bool) error {
	return d.mutate(stringID, models.UserChangeOnline, func(u *models.User) bool {
		if u.IsOnline == online {
			return false
		}
		u.IsOnline = online
		return true
	})
}

func (d *Directory) SetPremium(stringID string, premium bool) error {
	return d.mutate(stringID, models.UserChangePremium, func(u *models.User) bool {
		if u.IsPremium == premium {
			return false
		}
		u.IsPremium = premium
		return true
	})
}

func (d *Directory) mutate(stringID string, kind models.UserChangeKind, apply func(u *models.User) bool) error {
	tx := d.users.Lock()
	u, err := tx.Get(stringID)
	if err != nil {
		tx.Unlock()
		return models.ErrNotFound
	}
	changed := apply(u)
	snapshot := *u
	tx.Unlock()

	if changed {
		d.notify([]models.UserChange{{Kind: kind, User: snapshot}})
	}
	return nil
}

// List returns all known users ordered by display name.
func (d *Directory) List() []models.User {
	tx := d.users.Lock()
	snapshot := tx.Snapshot()
	tx.Unlock()

	users := make([]models.User, 0, len(snapshot))
	for _, u := range snapshot {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].StringID < users[j].StringID
	})
	return users
}

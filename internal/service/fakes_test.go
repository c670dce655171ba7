package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"storyforge/internal/model"
	"storyforge/internal/repository"
	"storyforge/internal/story"
)

// In-memory store fakes backing the service tests. They mirror the
// repository query semantics closely enough to exercise the services
// without a database.

type fakeTokenStore struct {
	tokens []*model.Token
	nextID int
	now    func() time.Time
	// projectStatus joins tokens against the project fake for the
	// status-filtered lookup.
	projectStatus func(projectID int) story.Status
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{nextID: 1, now: time.Now}
}

func (f *fakeTokenStore) Insert(_ context.Context, t *model.Token) error {
	t.ID = f.nextID
	f.nextID++
	t.CreatedAt = f.now().Add(time.Duration(t.ID) * time.Millisecond)
	copied := *t
	f.tokens = append(f.tokens, &copied)
	return nil
}

func (f *fakeTokenStore) FindByPublicID(_ context.Context, publicID string) (*model.Token, error) {
	for _, t := range f.tokens {
		if t.PublicID == publicID {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeTokenStore) passes(t *model.Token, filter repository.TokenFilter) bool {
	if !filter.IncludeRevoked && t.RevokedAt != nil {
		return false
	}
	if !filter.IncludeExpired && t.ExpiresAt.Before(f.now()) {
		return false
	}
	return true
}

func (f *fakeTokenStore) FindActive(_ context.Context, projectID, userID int, filter repository.TokenFilter) (*model.Token, error) {
	var latest *model.Token
	for _, t := range f.tokens {
		if t.ProjectID != projectID || t.UserID != userID || !f.passes(t, filter) {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeTokenStore) FindLatestByProjectStatus(ctx context.Context, userID int, status story.Status, projectID int, filter repository.TokenFilter) (*model.Token, error) {
	var latest *model.Token
	for _, t := range f.tokens {
		if t.UserID != userID || !f.passes(t, filter) {
			continue
		}
		if projectID != 0 && t.ProjectID != projectID {
			continue
		}
		if f.projectStatus == nil || f.projectStatus(t.ProjectID) != status {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeTokenStore) Revoke(_ context.Context, tokenID int, at time.Time) error {
	for _, t := range f.tokens {
		if t.ID == tokenID {
			revoked := at
			t.RevokedAt = &revoked
			return nil
		}
	}
	return nil
}

func (f *fakeTokenStore) UpdateSettings(_ context.Context, tokenID int, settings model.Settings) error {
	for _, t := range f.tokens {
		if t.ID == tokenID {
			t.Settings = settings.Clone()
			return nil
		}
	}
	return nil
}

func (f *fakeTokenStore) ListByUser(_ context.Context, userID int) ([]model.Token, error) {
	var out []model.Token
	for _, t := range f.tokens {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

type fakeProjectStore struct {
	projects []*model.Project
	byTeam   map[int][]int
	nextID   int
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{byTeam: map[int][]int{}, nextID: 1}
}

func (f *fakeProjectStore) InsertForTeam(_ context.Context, p *model.Project, teamID int) error {
	p.ID = f.nextID
	f.nextID++
	if p.Status == 0 {
		p.Status = story.StatusDraft
	}
	copied := *p
	f.projects = append(f.projects, &copied)
	f.byTeam[teamID] = append(f.byTeam[teamID], p.ID)
	return nil
}

func (f *fakeProjectStore) FindByPublicID(_ context.Context, publicID string) (*model.Project, error) {
	for _, p := range f.projects {
		if p.PublicID == publicID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeProjectStore) FindByID(_ context.Context, id int) (*model.Project, error) {
	for _, p := range f.projects {
		if p.ID == id {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeProjectStore) UpdateStatus(_ context.Context, projectID int, status story.Status) (bool, error) {
	for _, p := range f.projects {
		if p.ID == projectID {
			p.Status = status
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProjectStore) ListByTeam(_ context.Context, teamID int) ([]model.Project, error) {
	var out []model.Project
	for _, id := range f.byTeam[teamID] {
		if p, _ := f.FindByID(context.Background(), id); p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProjectStore) statusOf(projectID int) story.Status {
	for _, p := range f.projects {
		if p.ID == projectID {
			return p.Status
		}
	}
	return 0
}

type responseKey struct {
	projectID int
	step      string
	key       string
}

type fakeResponseStore struct {
	values map[responseKey]string
}

func newFakeResponseStore() *fakeResponseStore {
	return &fakeResponseStore{values: map[responseKey]string{}}
}

func (f *fakeResponseStore) Upsert(_ context.Context, projectID int, step, key, value string) error {
	f.values[responseKey{projectID, step, key}] = value
	return nil
}

func (f *fakeResponseStore) ListByProjectSteps(_ context.Context, projectID int, steps []string) ([]model.Response, error) {
	wanted := map[string]bool{}
	for _, s := range steps {
		wanted[s] = true
	}
	var out []model.Response
	for k, v := range f.values {
		if k.projectID == projectID && wanted[k.step] {
			out = append(out, model.Response{
				ProjectID: k.projectID,
				Step:      k.step,
				Key:       k.key,
				Value:     v,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

type fakeUserStore struct {
	users  []*model.User
	nextID int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1}
}

func (f *fakeUserStore) Insert(_ context.Context, u *model.User) error {
	u.ID = f.nextID
	f.nextID++
	copied := *u
	f.users = append(f.users, &copied)
	return nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) FindByPublicID(_ context.Context, publicID string) (*model.User, error) {
	for _, u := range f.users {
		if u.PublicID == publicID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) FindByID(_ context.Context, id int) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) UpdateSettings(_ context.Context, userID int, settings model.Settings) error {
	for _, u := range f.users {
		if u.ID == userID {
			u.Settings = settings.Clone()
			return nil
		}
	}
	return nil
}

func (f *fakeUserStore) UpdatePasswordHash(_ context.Context, userID int, hash string) error {
	for _, u := range f.users {
		if u.ID == userID {
			u.PasswordHash = hash
			return nil
		}
	}
	return nil
}

func (f *fakeUserStore) List(_ context.Context, limit, offset int) ([]model.User, error) {
	var out []model.User
	for i := offset; i < len(f.users) && len(out) < limit; i++ {
		out = append(out, *f.users[i])
	}
	return out, nil
}

func (f *fakeUserStore) Search(_ context.Context, term string, limit int) ([]model.User, error) {
	term = strings.ToLower(term)
	var out []model.User
	for _, u := range f.users {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(u.Name), term) || strings.Contains(strings.ToLower(u.Email), term) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUserStore) Count(_ context.Context) (int, error) {
	return len(f.users), nil
}

type fakeTeamStore struct {
	teams   []*model.Team
	members map[int][]int
	nextID  int
}

func newFakeTeamStore() *fakeTeamStore {
	return &fakeTeamStore{members: map[int][]int{}, nextID: 1}
}

func (f *fakeTeamStore) InsertForUser(_ context.Context, t *model.Team, userID int) error {
	t.ID = f.nextID
	f.nextID++
	copied := *t
	f.teams = append(f.teams, &copied)
	f.members[t.ID] = append(f.members[t.ID], userID)
	return nil
}

func (f *fakeTeamStore) FindByKeyForUser(_ context.Context, key string, userID int) (*model.Team, error) {
	for _, t := range f.teams {
		if t.Key != key {
			continue
		}
		for _, id := range f.members[t.ID] {
			if id == userID {
				copied := *t
				return &copied, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeTeamStore) ListByUser(_ context.Context, userID int) ([]model.Team, error) {
	var out []model.Team
	for _, t := range f.teams {
		for _, id := range f.members[t.ID] {
			if id == userID {
				out = append(out, *t)
			}
		}
	}
	return out, nil
}

type fakePublisher struct {
	published []struct {
		RoutingKey string
		Payload    any
	}
	err error
}

func (f *fakePublisher) Publish(routingKey string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, struct {
		RoutingKey string
		Payload    any
	}{routingKey, payload})
	return nil
}

// Package storetest provides an in-memory store.Store for package tests.
// Atomic blocks are serialized and rolled back from a snapshot on error.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type pair struct {
	user  uuid.UUID
	other uuid.UUID
}

type tables struct {
	users      map[uuid.UUID]models.User
	quests     map[uuid.UUID]models.Quest
	userQuests map[pair]models.UserQuest
	progress   map[pair]models.QuestProgress
	items      map[uuid.UUID]models.Item
	inventory  map[pair]models.InventoryItem
	txs        map[uuid.UUID]models.Transaction
	tokens     map[string]models.RefreshToken
	settings   map[string]models.GameSetting
}

func newTables() tables {
	return tables{
		users:      map[uuid.UUID]models.User{},
		quests:     map[uuid.UUID]models.Quest{},
		userQuests: map[pair]models.UserQuest{},
		progress:   map[pair]models.QuestProgress{},
		items:      map[uuid.UUID]models.Item{},
		inventory:  map[pair]models.InventoryItem{},
		txs:        map[uuid.UUID]models.Transaction{},
		tokens:     map[string]models.RefreshToken{},
		settings:   map[string]models.GameSetting{},
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range t.quests {
		c.quests[k] = copyQuest(v)
	}
	for k, v := range t.userQuests {
		c.userQuests[k] = v
	}
	for k, v := range t.progress {
		c.progress[k] = copyProgress(v)
	}
	for k, v := range t.items {
		c.items[k] = copyItem(v)
	}
	for k, v := range t.inventory {
		c.inventory[k] = v
	}
	for k, v := range t.txs {
		c.txs[k] = copyTx(v)
	}
	for k, v := range t.tokens {
		c.tokens[k] = v
	}
	for k, v := range t.settings {
		c.settings[k] = v
	}
	return c
}

// Store is safe for concurrent use. Reads and writes outside Atomic behave
// as auto-committed statements.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	t    tables

	// Err, when set, is returned by Ping.
	Err error
}

func New() *Store {
	return &Store{t: newTables()}
}

func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.t.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.t = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Err
}

// Locks are implied by the serialized Atomic blocks.

func (s *Store) LockUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.GetUser(ctx, id)
}

func (s *Store) LockUserQuest(ctx context.Context, userID, questID uuid.UUID) (*models.UserQuest, error) {
	return s.GetUserQuest(ctx, userID, questID)
}

func (s *Store) LockQuestProgress(ctx context.Context, userID, questID uuid.UUID) (*models.QuestProgress, error) {
	return s.GetQuestProgress(ctx, userID, questID)
}

func (s *Store) LockTransactionByPaymentID(ctx context.Context, paymentID string) (*models.Transaction, error) {
	return s.GetTransactionByPaymentID(ctx, paymentID)
}

// --- users ---

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.t.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := copyUser(u)
	return &c, nil
}

func (s *Store) GetUserByPiUID(ctx context.Context, piUID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.t.users {
		if u.PiUserID == piUID {
			c := copyUser(u)
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.t.users {
		if u.Username == username {
			c := copyUser(u)
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if _, ok := s.t.users[u.ID]; ok {
		return store.ErrDuplicate
	}
	if err := s.checkUserUnique(u); err != nil {
		return err
	}
	stamp(&u.CreatedAt, &u.UpdatedAt)
	s.t.users[u.ID] = copyUser(*u)
	return nil
}

func (s *Store) SaveUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUserUnique(u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now()
	s.t.users[u.ID] = copyUser(*u)
	return nil
}

func (s *Store) checkUserUnique(u *models.User) error {
	for id, other := range s.t.users {
		if id == u.ID {
			continue
		}
		if other.PiUserID == u.PiUserID || other.Username == u.Username {
			return store.ErrDuplicate
		}
	}
	return nil
}

func (s *Store) Leaderboard(ctx context.Context, by store.LeaderboardSort, page, perPage int) ([]models.User, int64, error) {
	s.mu.Lock()
	users := make([]models.User, 0, len(s.t.users))
	for _, u := range s.t.users {
		users = append(users, copyUser(u))
	}
	s.mu.Unlock()

	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i], users[j]
		switch by {
		case store.SortByExperience:
			return a.Experience > b.Experience
		case store.SortByBalance:
			return a.Balance.GreaterThan(b.Balance)
		}
		if a.Level != b.Level {
			return a.Level > b.Level
		}
		return a.Experience > b.Experience
	})
	return window(users, page, perPage), int64(len(users)), nil
}

// --- quests ---

func (s *Store) GetQuest(ctx context.Context, id uuid.UUID) (*models.Quest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.t.quests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := copyQuest(q)
	return &c, nil
}

func (s *Store) ListActiveQuests(ctx context.Context, maxLevel int) ([]models.Quest, error) {
	s.mu.Lock()
	var out []models.Quest
	for _, q := range s.t.quests {
		if q.IsActive && q.LevelRequirement <= maxLevel {
			out = append(out, copyQuest(q))
		}
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LevelRequirement != out[j].LevelRequirement {
			return out[i].LevelRequirement < out[j].LevelRequirement
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateQuest(ctx context.Context, q *models.Quest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if _, ok := s.t.quests[q.ID]; ok {
		return store.ErrDuplicate
	}
	stamp(&q.CreatedAt, &q.UpdatedAt)
	s.t.quests[q.ID] = copyQuest(*q)
	return nil
}

func (s *Store) SetQuestActive(ctx context.Context, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.t.quests[id]
	if !ok {
		return store.ErrNotFound
	}
	q.IsActive = active
	q.UpdatedAt = time.Now()
	s.t.quests[id] = q
	return nil
}

func (s *Store) GetUserQuest(ctx context.Context, userID, questID uuid.UUID) (*models.UserQuest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uq, ok := s.t.userQuests[pair{userID, questID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &uq, nil
}

func (s *Store) ListUserQuests(ctx context.Context, userID uuid.UUID) ([]models.UserQuest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UserQuest
	for k, uq := range s.t.userQuests {
		if k.user == userID {
			out = append(out, uq)
		}
	}
	return out, nil
}

func (s *Store) CreateUserQuest(ctx context.Context, uq *models.UserQuest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pair{uq.UserID, uq.QuestID}
	if _, ok := s.t.userQuests[key]; ok {
		return store.ErrDuplicate
	}
	if uq.ID == uuid.Nil {
		uq.ID = uuid.New()
	}
	stamp(&uq.CreatedAt, &uq.UpdatedAt)
	s.t.userQuests[key] = *uq
	return nil
}

func (s *Store) SaveUserQuest(ctx context.Context, uq *models.UserQuest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	uq.UpdatedAt = time.Now()
	s.t.userQuests[pair{uq.UserID, uq.QuestID}] = *uq
	return nil
}

func (s *Store) GetQuestProgress(ctx context.Context, userID, questID uuid.UUID) (*models.QuestProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.t.progress[pair{userID, questID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := copyProgress(p)
	return &c, nil
}

func (s *Store) CreateQuestProgress(ctx context.Context, p *models.QuestProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pair{p.UserID, p.QuestID}
	if _, ok := s.t.progress[key]; ok {
		return store.ErrDuplicate
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.UpdatedAt = time.Now()
	s.t.progress[key] = copyProgress(*p)
	return nil
}

func (s *Store) SaveQuestProgress(ctx context.Context, p *models.QuestProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now()
	s.t.progress[pair{p.UserID, p.QuestID}] = copyProgress(*p)
	return nil
}

// --- items ---

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.t.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := copyItem(i)
	return &c, nil
}

func (s *Store) ListItems(ctx context.Context, f store.ItemFilter) ([]models.Item, int64, error) {
	s.mu.Lock()
	var out []models.Item
	for _, i := range s.t.items {
		switch {
		case !i.IsAvailable:
		case f.ItemType != "" && i.ItemType != f.ItemType:
		case f.Rarity != "" && i.Rarity != f.Rarity:
		case f.MinLevel > 0 && i.LevelRequirement < f.MinLevel:
		case f.MaxLevel > 0 && i.LevelRequirement > f.MaxLevel:
		case !f.IncludePremium && i.IsPremiumOnly:
		default:
			out = append(out, copyItem(i))
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(a, b int) bool {
		switch f.SortBy {
		case "name":
			return out[a].Name < out[b].Name
		case "pi_price":
			return out[a].PiPrice.LessThan(out[b].PiPrice)
		case "level_requirement":
			return out[a].LevelRequirement < out[b].LevelRequirement
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return window(out, f.Page, f.PerPage), int64(len(out)), nil
}

func (s *Store) ListItemsByRarity(ctx context.Context, rarities []string, orderBy string, limit int) ([]models.Item, error) {
	want := map[string]bool{}
	for _, r := range rarities {
		want[r] = true
	}
	s.mu.Lock()
	var out []models.Item
	for _, i := range s.t.items {
		if i.IsAvailable && (len(want) == 0 || want[i.Rarity]) {
			out = append(out, copyItem(i))
		}
	}
	s.mu.Unlock()

	desc := strings.HasSuffix(strings.ToUpper(orderBy), " DESC")
	sort.SliceStable(out, func(a, b int) bool {
		var less bool
		if strings.HasPrefix(orderBy, "pi_price") {
			less = out[a].PiPrice.LessThan(out[b].PiPrice)
		} else {
			less = out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		if desc {
			return !less
		}
		return less
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ItemCategories(ctx context.Context) ([]string, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	types, rarities := map[string]bool{}, map[string]bool{}
	for _, i := range s.t.items {
		types[i.ItemType] = true
		rarities[i.Rarity] = true
	}
	return keys(types), keys(rarities), nil
}

func (s *Store) CreateItem(ctx context.Context, i *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if _, ok := s.t.items[i.ID]; ok {
		return store.ErrDuplicate
	}
	stamp(&i.CreatedAt, &i.UpdatedAt)
	s.t.items[i.ID] = copyItem(*i)
	return nil
}

func (s *Store) SetItemAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.t.items[id]
	if !ok {
		return store.ErrNotFound
	}
	i.IsAvailable = available
	i.UpdatedAt = time.Now()
	s.t.items[id] = i
	return nil
}

func (s *Store) AddInventoryItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	key := pair{userID, itemID}
	inv, ok := s.t.inventory[key]
	if !ok {
		inv = models.InventoryItem{ID: uuid.New(), UserID: userID, ItemID: itemID, AcquiredAt: now}
	}
	inv.Quantity += quantity
	inv.UpdatedAt = now
	s.t.inventory[key] = inv
	return nil
}

func (s *Store) ListInventory(ctx context.Context, userID uuid.UUID) ([]models.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.InventoryItem
	for k, inv := range s.t.inventory {
		if k.user == userID {
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].AcquiredAt.Before(out[b].AcquiredAt) })
	return out, nil
}

// --- transactions ---

func (s *Store) GetTransaction(ctx context.Context, userID, id uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.t.txs[id]
	if !ok || t.UserID != userID {
		return nil, store.ErrNotFound
	}
	c := copyTx(t)
	return &c, nil
}

func (s *Store) GetTransactionByPaymentID(ctx context.Context, paymentID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.t.txs {
		if t.PiPaymentID != nil && *t.PiPaymentID == paymentID {
			c := copyTx(t)
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]models.Transaction, int64, error) {
	s.mu.Lock()
	var out []models.Transaction
	for _, t := range s.t.txs {
		switch {
		case t.UserID != f.UserID:
		case f.Type != "" && t.Type != f.Type:
		case f.Status != "" && t.Status != f.Status:
		case f.Since != nil && t.CreatedAt.Before(*f.Since):
		default:
			out = append(out, copyTx(t))
		}
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return window(out, f.Page, f.PerPage), int64(len(out)), nil
}

func (s *Store) SumTransactions(ctx context.Context, userID uuid.UUID, types []models.TransactionType, status models.TransactionStatus) (decimal.Decimal, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	var n int64
	for _, t := range s.t.txs {
		if t.UserID != userID || t.Status != status || !hasType(types, t.Type) {
			continue
		}
		total = total.Add(t.Amount)
		n++
	}
	return total, n, nil
}

func (s *Store) ListPendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	s.mu.Lock()
	var out []models.Transaction
	for _, t := range s.t.txs {
		if t.Status == models.TxPending && t.PiPaymentID != nil && t.CreatedAt.Before(createdBefore) {
			out = append(out, copyTx(t))
		}
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if _, ok := s.t.txs[t.ID]; ok {
		return store.ErrDuplicate
	}
	if t.PiPaymentID != nil {
		for _, other := range s.t.txs {
			if other.PiPaymentID != nil && *other.PiPaymentID == *t.PiPaymentID {
				return store.ErrDuplicate
			}
		}
	}
	stamp(&t.CreatedAt, &t.UpdatedAt)
	s.t.txs[t.ID] = copyTx(*t)
	return nil
}

func (s *Store) SaveTransaction(ctx context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.UpdatedAt = time.Now()
	s.t.txs[t.ID] = copyTx(*t)
	return nil
}

// --- auth & settings ---

func (s *Store) GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.t.tokens[tokenHash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rt, nil
}

func (s *Store) CreateRefreshToken(ctx context.Context, rt *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.t.tokens[rt.TokenHash]; ok {
		return store.ErrDuplicate
	}
	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = time.Now()
	}
	s.t.tokens[rt.TokenHash] = *rt
	return nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt, ok := s.t.tokens[tokenHash]; ok {
		rt.Revoked = true
		s.t.tokens[tokenHash] = rt
	}
	return nil
}

func (s *Store) ListGameSettings(ctx context.Context) ([]models.GameSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.GameSetting, 0, len(s.t.settings))
	for _, gs := range s.t.settings {
		out = append(out, gs)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Key < out[b].Key })
	return out, nil
}

func (s *Store) UpsertGameSetting(ctx context.Context, gs *models.GameSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.t.settings[gs.Key]; ok {
		gs.ID = existing.ID
		gs.CreatedAt = existing.CreatedAt
	} else {
		if gs.ID == uuid.Nil {
			gs.ID = uuid.New()
		}
		gs.CreatedAt = now
	}
	gs.UpdatedAt = now
	s.t.settings[gs.Key] = *gs
	return nil
}

func (s *Store) DeleteGameSetting(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.t.settings[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.t.settings, key)
	return nil
}

// --- helpers ---

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func window[T any](rows []T, page, perPage int) []T {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	start := (page - 1) * perPage
	if start >= len(rows) {
		return []T{}
	}
	end := start + perPage
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func hasType(types []models.TransactionType, t models.TransactionType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func copyMap(m datatypes.JSONMap) datatypes.JSONMap {
	if m == nil {
		return nil
	}
	c := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func copyUser(u models.User) models.User {
	u.AvatarUpgrades = copyMap(u.AvatarUpgrades)
	return u
}

func copyQuest(q models.Quest) models.Quest {
	q.Objectives = append(datatypes.JSONSlice[string](nil), q.Objectives...)
	return q
}

func copyProgress(p models.QuestProgress) models.QuestProgress {
	p.CompletionData = copyMap(p.CompletionData)
	p.ProcessedEvents = append(datatypes.JSONSlice[string](nil), p.ProcessedEvents...)
	return p
}

func copyItem(i models.Item) models.Item {
	i.Stats = copyMap(i.Stats)
	return i
}

func copyTx(t models.Transaction) models.Transaction {
	t.Metadata = copyMap(t.Metadata)
	return t
}

var _ store.Store = (*Store)(nil)

package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starhost/starhost/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketGames = []byte("games")
	bucketUsers = []byte("users")
	bucketMeta  = []byte("meta")

	keyLastGameID = []byte("last_game_id")
)

func toolBucket(catalog string) []byte {
	return []byte("tools_" + catalog)
}

func defaultKey(catalog string) []byte {
	return []byte("default_tool_" + catalog)
}

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database in the given directory
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "starhost.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketGames, bucketUsers, bucketMeta}
		for _, c := range Catalogs {
			buckets = append(buckets, toolBucket(c))
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func gameKey(id int) []byte {
	// Big-endian keys keep games sorted by id in bucket order
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(id))
	return k[:]
}

// Game operations

func (s *BoltStore) AllocGameID() (int, error) {
	var id int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		last := 0
		if data := b.Get(keyLastGameID); data != nil {
			if err := json.Unmarshal(data, &last); err != nil {
				return err
			}
		}
		id = last + 1
		data, err := json.Marshal(id)
		if err != nil {
			return err
		}
		return b.Put(keyLastGameID, data)
	})
	return id, err
}

func (s *BoltStore) CreateGame(game *types.Game) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGames)
		if b.Get(gameKey(game.ID)) != nil {
			return fmt.Errorf("game already exists: %d", game.ID)
		}
		data, err := json.Marshal(game)
		if err != nil {
			return err
		}
		return b.Put(gameKey(game.ID), data)
	})
}

func (s *BoltStore) GetGame(id int) (*types.Game, error) {
	var game types.Game
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGames)
		data := b.Get(gameKey(id))
		if data == nil {
			return fmt.Errorf("game not found: %d", id)
		}
		return json.Unmarshal(data, &game)
	})
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *BoltStore) GetGameByTimestamp(ts string) (*types.Game, error) {
	var found *types.Game
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGames)
		return b.ForEach(func(k, v []byte) error {
			var game types.Game
			if err := json.Unmarshal(v, &game); err != nil {
				return err
			}
			if game.Timestamp == ts && game.State != types.GameStateDeleted {
				found = &game
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("no game with timestamp %q", ts)
	}
	return found, nil
}

func (s *BoltStore) ListGames() ([]*types.Game, error) {
	var games []*types.Game
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGames)
		return b.ForEach(func(k, v []byte) error {
			var game types.Game
			if err := json.Unmarshal(v, &game); err != nil {
				return err
			}
			games = append(games, &game)
			return nil
		})
	})
	return games, err
}

func (s *BoltStore) UpdateGame(game *types.Game) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGames)
		if b.Get(gameKey(game.ID)) == nil {
			return fmt.Errorf("game not found: %d", game.ID)
		}
		data, err := json.Marshal(game)
		if err != nil {
			return err
		}
		return b.Put(gameKey(game.ID), data)
	})
}

func (s *BoltStore) DeleteGame(id int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGames).Delete(gameKey(id))
	})
}

// User operations

func (s *BoltStore) CreateUser(user *types.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		if b.Get([]byte(user.ID)) != nil {
			return fmt.Errorf("user already exists: %s", user.ID)
		}
		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return b.Put([]byte(user.ID), data)
	})
}

func (s *BoltStore) GetUser(id string) (*types.User, error) {
	var user types.User
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("user not found: %s", id)
		}
		return json.Unmarshal(data, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail matches case-insensitively
func (s *BoltStore) GetUserByEmail(email string) (*types.User, error) {
	var found *types.User
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		return b.ForEach(func(k, v []byte) error {
			var user types.User
			if err := json.Unmarshal(v, &user); err != nil {
				return err
			}
			if strings.EqualFold(user.Email, email) {
				found = &user
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("no user with email %q", email)
	}
	return found, nil
}

func (s *BoltStore) ListUsers() ([]*types.User, error) {
	var users []*types.User
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		return b.ForEach(func(k, v []byte) error {
			var user types.User
			if err := json.Unmarshal(v, &user); err != nil {
				return err
			}
			users = append(users, &user)
			return nil
		})
	})
	return users, err
}

func (s *BoltStore) UpdateUser(user *types.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		if b.Get([]byte(user.ID)) == nil {
			return fmt.Errorf("user not found: %s", user.ID)
		}
		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return b.Put([]byte(user.ID), data)
	})
}

func (s *BoltStore) DeleteUser(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).Delete([]byte(id))
	})
}

// Tool operations

func (s *BoltStore) CreateTool(catalog string, tool *types.Tool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(toolBucket(catalog))
		if b == nil {
			return fmt.Errorf("unknown catalog: %s", catalog)
		}
		if b.Get([]byte(tool.ID)) != nil {
			return fmt.Errorf("tool already exists: %s", tool.ID)
		}
		data, err := json.Marshal(tool)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(tool.ID), data); err != nil {
			return err
		}
		// First tool of a catalog becomes the default
		meta := tx.Bucket(bucketMeta)
		if meta.Get(defaultKey(catalog)) == nil {
			return meta.Put(defaultKey(catalog), []byte(tool.ID))
		}
		return nil
	})
}

func (s *BoltStore) GetTool(catalog, id string) (*types.Tool, error) {
	var tool types.Tool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(toolBucket(catalog))
		if b == nil {
			return fmt.Errorf("unknown catalog: %s", catalog)
		}
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("tool not found: %s", id)
		}
		return json.Unmarshal(data, &tool)
	})
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

func (s *BoltStore) ListTools(catalog string) ([]*types.Tool, error) {
	var tools []*types.Tool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(toolBucket(catalog))
		if b == nil {
			return fmt.Errorf("unknown catalog: %s", catalog)
		}
		return b.ForEach(func(k, v []byte) error {
			var tool types.Tool
			if err := json.Unmarshal(v, &tool); err != nil {
				return err
			}
			tools = append(tools, &tool)
			return nil
		})
	})
	return tools, err
}

func (s *BoltStore) UpdateTool(catalog string, tool *types.Tool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(toolBucket(catalog))
		if b == nil {
			return fmt.Errorf("unknown catalog: %s", catalog)
		}
		if b.Get([]byte(tool.ID)) == nil {
			return fmt.Errorf("tool not found: %s", tool.ID)
		}
		data, err := json.Marshal(tool)
		if err != nil {
			return err
		}
		return b.Put([]byte(tool.ID), data)
	})
}

func (s *BoltStore) DeleteTool(catalog, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(toolBucket(catalog))
		if b == nil {
			return fmt.Errorf("unknown catalog: %s", catalog)
		}
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("tool not found: %s", id)
		}
		if err := b.Delete([]byte(id)); err != nil {
			return err
		}
		// Keep the single-default invariant: when the default goes away,
		// promote the first remaining tool
		meta := tx.Bucket(bucketMeta)
		if string(meta.Get(defaultKey(catalog))) == id {
			k, _ := b.Cursor().First()
			if k == nil {
				return meta.Delete(defaultKey(catalog))
			}
			return meta.Put(defaultKey(catalog), k)
		}
		return nil
	})
}

func (s *BoltStore) GetDefaultTool(catalog string) (string, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		id = string(tx.Bucket(bucketMeta).Get(defaultKey(catalog)))
		return nil
	})
	return id, err
}

func (s *BoltStore) SetDefaultTool(catalog, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(toolBucket(catalog))
		if b == nil {
			return fmt.Errorf("unknown catalog: %s", catalog)
		}
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("tool not found: %s", id)
		}
		return tx.Bucket(bucketMeta).Put(defaultKey(catalog), []byte(id))
	})
}

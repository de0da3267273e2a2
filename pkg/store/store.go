package store

import (
	"github.com/starhost/starhost/pkg/types"
)

// Store is the persistent metadata store of the hosting service. The
// in-memory scheduler queues are a cache; this store is the source of
// truth and queues are rebuilt from it on startup.
type Store interface {
	// Games
	AllocGameID() (int, error)
	CreateGame(game *types.Game) error
	GetGame(id int) (*types.Game, error)
	GetGameByTimestamp(ts string) (*types.Game, error)
	ListGames() ([]*types.Game, error)
	UpdateGame(game *types.Game) error
	DeleteGame(id int) error

	// Users
	CreateUser(user *types.User) error
	GetUser(id string) (*types.User, error)
	GetUserByEmail(email string) (*types.User, error)
	ListUsers() ([]*types.User, error)
	UpdateUser(user *types.User) error
	DeleteUser(id string) error

	// Tool catalogs. Catalog is one of "host", "master", "shiplist",
	// "tool"; each catalog has at most one default tool.
	CreateTool(catalog string, tool *types.Tool) error
	GetTool(catalog, id string) (*types.Tool, error)
	ListTools(catalog string) ([]*types.Tool, error)
	UpdateTool(catalog string, tool *types.Tool) error
	DeleteTool(catalog, id string) error
	GetDefaultTool(catalog string) (string, error)
	SetDefaultTool(catalog, id string) error

	// Utility
	Close() error
}

// Catalog names
const (
	CatalogHost     = "host"
	CatalogMaster   = "master"
	CatalogShiplist = "shiplist"
	CatalogTool     = "tool"
)

// Catalogs lists the four parallel tool catalogs
var Catalogs = []string{CatalogHost, CatalogMaster, CatalogShiplist, CatalogTool}

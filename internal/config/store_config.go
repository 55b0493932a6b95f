package config

type StoreConfig interface {
	GetStoreBaseURL() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreBaseURL() string {
	return GetEnv("SESSION_STORE_URL", "http://localhost:8081")
}

package database

import (
	"bytes"
	"io"
	"io/fs"
	"log"
	"os"
	"path"

	"github.com/vitalink-io/vitalink/config"
	"github.com/vitalink-io/vitalink/database/model"
	"github.com/vitalink-io/vitalink/util/crypto"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

const (
	defaultUsername  = "admin"
	defaultPassword  = "admin123"
	defaultFirstName = "Admin"
	defaultLastName  = "System"
)

func initModels() error {
	models := []interface{}{
		&model.User{},
		&model.Session{},
	}
	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			log.Printf("Error auto migrating model: %v", err)
			return err
		}
	}
	return nil
}

func initUser() error {
	empty, err := isTableEmpty("users")
	if err != nil {
		log.Printf("Error checking if users table is empty: %v", err)
		return err
	}
	if empty {
		hash, err := crypto.HashCredential(defaultPassword)
		if err != nil {
			return err
		}
		now := model.NowStamp()
		user := &model.User{
			Username:     defaultUsername,
			PasswordHash: hash,
			FirstName:    defaultFirstName,
			LastName:     defaultLastName,
			Role:         string(model.RoleAdmin),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return db.Create(user).Error
	}
	return nil
}

func isTableEmpty(tableName string) (bool, error) {
	var count int64
	err := db.Table(tableName).Count(&count).Error
	return count == 0, err
}

// BackfillUpdatedAt stamps rows that predate replication. Every record
// offered for sync must carry a non-empty updated_at; rows without one get
// their created_at, or the current time when created_at is empty too.
func BackfillUpdatedAt(tx *gorm.DB) error {
	now := model.NowStamp()
	err := tx.Model(&model.User{}).
		Where("updated_at IS NULL OR updated_at = ''").
		Update("updated_at", gorm.Expr("COALESCE(NULLIF(created_at, ''), ?)", now)).Error
	return err
}

func InitDB(dbPath string) error {
	dir := path.Dir(dbPath)
	err := os.MkdirAll(dir, fs.ModePerm)
	if err != nil {
		return err
	}

	if err := checkExistingDB(dbPath); err != nil {
		return err
	}

	var gormLogger logger.Interface

	if config.IsDebug() {
		gormLogger = logger.Default
	} else {
		gormLogger = logger.Discard
	}

	c := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}

	dsn := dbPath + "?cache=shared&_journal_mode=WAL&_synchronous=NORMAL"
	db, err = gorm.Open(sqlite.Open(dsn), c)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	_, err = sqlDB.Exec("PRAGMA cache_size = -64000;")
	if err != nil {
		return err
	}
	_, err = sqlDB.Exec("PRAGMA temp_store = MEMORY;")
	if err != nil {
		return err
	}
	_, err = sqlDB.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		return err
	}

	if err := initModels(); err != nil {
		return err
	}
	if err := initUser(); err != nil {
		return err
	}
	if err := BackfillUpdatedAt(db); err != nil {
		return err
	}

	return nil
}

// checkExistingDB refuses to open a pre-existing file that is not SQLite,
// which otherwise surfaces later as an opaque migration failure.
func checkExistingDB(dbPath string) error {
	file, err := os.Open(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	if info, err := file.Stat(); err != nil || info.Size() == 0 {
		return err
	}

	ok, err := IsSQLiteDB(file)
	if err != nil {
		return err
	}
	if !ok {
		return os.ErrInvalid
	}
	return nil
}

func CloseDB() error {
	if db != nil {

		if err := Checkpoint(); err != nil {
			log.Printf("error executing checkpoint: %v", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

func GetDB() *gorm.DB {
	return db
}

func IsNotFound(err error) bool {
	return err == gorm.ErrRecordNotFound
}

func IsSQLiteDB(file io.ReaderAt) (bool, error) {
	signature := []byte("SQLite format 3\x00")
	buf := make([]byte, len(signature))
	_, err := file.ReadAt(buf, 0)
	if err != nil {
		return false, err
	}
	return bytes.Equal(buf, signature), nil
}

func Checkpoint() error {
	// Update WAL
	err := db.Exec("PRAGMA wal_checkpoint;").Error
	if err != nil {
		return err
	}
	return nil
}

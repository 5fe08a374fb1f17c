// Package repository реализует хранилище данных на основе PostgreSQL
// для повторяющихся правил и их материализованных экземпляров.
// Предоставляет CRUD по правилам, атомарные операции смены состояния
// (pause, resume, cancel-at-period-end, skip-next) и идемпотентный
// upsert экземпляров по паре (rule_id, period_key).
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrRuleNotFound возвращается, когда правило с указанным ID отсутствует.
var ErrRuleNotFound = errors.New("rule not found")

// ErrInvalidState возвращается, когда операция смены состояния запрошена
// для правила, не находящегося в требуемом исходном статусе.
var ErrInvalidState = errors.New("invalid state transition")

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с правилами и экземплярами.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'recurring_rules'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table recurring_rules missing or query error: %w", err)
	}
	return nil
}

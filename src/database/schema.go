package database

// 生年月日は YYYY-MM-DD のテキストで保存する（ドライバ間で型変換を揃えるため）

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS leaders (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS experiments (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		leader_id INTEGER NOT NULL REFERENCES leaders(id),
		open BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS participants (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		birth_date TEXT NOT NULL,
		language TEXT NOT NULL,
		multilingual BOOLEAN NOT NULL DEFAULT FALSE,
		sex TEXT NOT NULL,
		handedness TEXT NOT NULL,
		dyslexic BOOLEAN NOT NULL DEFAULT FALSE,
		social_status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id SERIAL PRIMARY KEY,
		experiment_id INTEGER NOT NULL REFERENCES experiments(id),
		participant_id INTEGER NOT NULL REFERENCES participants(id),
		timeslot TIMESTAMP NOT NULL
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS leaders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS experiments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		leader_id INTEGER NOT NULL REFERENCES leaders(id),
		open BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS participants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		birth_date TEXT NOT NULL,
		language TEXT NOT NULL,
		multilingual BOOLEAN NOT NULL DEFAULT 0,
		sex TEXT NOT NULL,
		handedness TEXT NOT NULL,
		dyslexic BOOLEAN NOT NULL DEFAULT 0,
		social_status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		experiment_id INTEGER NOT NULL REFERENCES experiments(id),
		participant_id INTEGER NOT NULL REFERENCES participants(id),
		timeslot DATETIME NOT NULL
	)`,
}

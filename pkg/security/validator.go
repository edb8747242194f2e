// Package security проверяет запросы источников данных перед выполнением.
package security

import (
	"fmt"
	"strings"
	"unicode"
)

// SQLValidator проверяет запросы источников на соответствие политике.
//
// В safe mode (по умолчанию) разрешен один SELECT или WITH запрос без
// изменяющих операций. В unsafe mode все запросы разрешены.
type SQLValidator struct {
	safeMode bool
}

// NewSQLValidator создает новый SQL валидатор
func NewSQLValidator(safeMode bool) *SQLValidator {
	return &SQLValidator{safeMode: safeMode}
}

// Запрещенные в safe mode ключевые слова
var forbidden = map[string]bool{
	// DML
	"INSERT": true, "UPDATE": true, "DELETE": true, "TRUNCATE": true, "MERGE": true, "UPSERT": true,
	// DDL
	"DROP": true, "CREATE": true, "ALTER": true, "RENAME": true,
	// DCL
	"GRANT": true, "REVOKE": true,
	"EXECUTE": true, "EXEC": true, "CALL": true,
	// SQLite
	"PRAGMA": true, "ATTACH": true, "DETACH": true, "VACUUM": true,
	// транзакции
	"BEGIN": true, "COMMIT": true, "ROLLBACK": true,
}

// Validate проверяет запрос. В safe mode:
//   - запрос начинается с SELECT или WITH
//   - нет запрещенных ключевых слов вне строковых литералов
//   - ";" допустима только в конце
//   - нет комментариев -- и /* */
func (v *SQLValidator) Validate(sql string) error {
	if !v.safeMode {
		return nil
	}
	if strings.TrimSpace(sql) == "" {
		return fmt.Errorf("empty query")
	}

	words, err := scan(sql)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return fmt.Errorf("empty query")
	}
	if words[0] != "SELECT" && words[0] != "WITH" {
		return fmt.Errorf("only SELECT and WITH queries allowed in safe mode, got: %s", words[0])
	}
	for _, w := range words {
		if forbidden[w] {
			return fmt.Errorf("forbidden keyword '%s' found in safe mode", w)
		}
	}
	return nil
}

// scan возвращает слова запроса в верхнем регистре, пропуская строковые
// литералы и идентификаторы в кавычках. Комментарии и ";" не в конце
// запроса - ошибка.
func scan(sql string) ([]string, error) {
	var words []string
	runes := []rune(sql)
	n := len(runes)

	for i := 0; i < n; {
		r := runes[i]
		switch {
		case r == '\'' || r == '"' || r == '`' || r == '[':
			closing := r
			if r == '[' {
				closing = ']'
			}
			j := i + 1
			for ; j < n; j++ {
				if runes[j] == closing {
					// удвоенная кавычка внутри литерала
					if closing != ']' && j+1 < n && runes[j+1] == closing {
						j++
						continue
					}
					break
				}
			}
			if j >= n {
				return nil, fmt.Errorf("unterminated quoted literal")
			}
			i = j + 1

		case r == '-' && i+1 < n && runes[i+1] == '-':
			return nil, fmt.Errorf("SQL comments (--) not allowed in safe mode")

		case r == '/' && i+1 < n && runes[i+1] == '*', r == '*' && i+1 < n && runes[i+1] == '/':
			return nil, fmt.Errorf("SQL comments (/* */) not allowed in safe mode")

		case r == ';':
			if strings.TrimSpace(string(runes[i+1:])) != "" {
				return nil, fmt.Errorf("multiple statements not allowed in safe mode")
			}
			i = n

		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < n && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '$') {
				j++
			}
			words = append(words, strings.ToUpper(string(runes[i:j])))
			i = j

		default:
			i++
		}
	}
	return words, nil
}

// IsSafeMode возвращает текущий режим валидатора
func (v *SQLValidator) IsSafeMode() bool {
	return v.safeMode
}

// SetSafeMode устанавливает режим валидатора
func (v *SQLValidator) SetSafeMode(safeMode bool) {
	v.safeMode = safeMode
}

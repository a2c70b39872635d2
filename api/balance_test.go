package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceHandler_UpsertStartingBalance(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	// 不存在旧记录，走插入
	mock.ExpectQuery("SELECT .* FROM `starting_balances`").
		WithArgs(uint(1)).
		WillReturnRows(sqlmock.NewRows([]string{}))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `starting_balances`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.PUT("/balance/starting", NewBalanceHandler().UpsertStartingBalance)

	body := `{"effective_date":"2024-01-01","amount":1000.00}`
	req := httptest.NewRequest("PUT", "/balance/starting", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "设置成功", resp["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceHandler_UpsertStartingBalance_NegativeAmount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.PUT("/balance/starting", NewBalanceHandler().UpsertStartingBalance)

	body := `{"effective_date":"2024-01-01","amount":-5}`
	req := httptest.NewRequest("PUT", "/balance/starting", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestBalanceHandler_Project(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .* FROM `starting_balances`").
		WithArgs(uint(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "effective_date", "amount", "created_at", "updated_at",
		}).AddRow(1, 1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local), 1000.00,
			time.Now(), time.Now()))

	// 无任何系列，预测结果即起始余额
	mock.ExpectQuery("SELECT .* FROM `entry_series`").
		WithArgs(uint(1)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.GET("/balance/projection", NewBalanceHandler().Project)

	req := httptest.NewRequest("GET", "/balance/projection?target_date=2024-06-01", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(1000), data["projected_balance"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceHandler_Project_NoStartingBalance(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .* FROM `starting_balances`").
		WithArgs(uint(1)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.GET("/balance/projection", NewBalanceHandler().Project)

	req := httptest.NewRequest("GET", "/balance/projection?target_date=2024-06-01", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// 尚未设置起始余额属于前置条件不满足
	assert.Equal(t, 412, w.Code)
	assert.Contains(t, w.Body.String(), "起始余额")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceHandler_Project_MissingTargetDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.GET("/balance/projection", NewBalanceHandler().Project)

	req := httptest.NewRequest("GET", "/balance/projection", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "target_date")
}

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountGroupsByName(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT count").
		WithArgs("Editors").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := s.CountGroupsByName(context.Background(), "Editors")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetGroup_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, description, blocked FROM groups").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "blocked"}))

	_, err := s.GetGroup(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateGroup(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO groups").
		WithArgs("Editors", "content editors", false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec("INSERT INTO groups_users").
		WithArgs(int64(3), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO groups_users").
		WithArgs(int64(3), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO groups_resources").
		WithArgs(int64(3), int64(7), true, true, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := s.CreateGroup(context.Background(),
		&Group{Name: "Editors", Description: "content editors"},
		[]int64{1, 2},
		[]GrantInput{{ResourceID: 7, Write: true, Update: true}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateGroup_RollsBackOnGrantFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO groups").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec("INSERT INTO groups_resources").
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	_, err := s.CreateGroup(context.Background(),
		&Group{Name: "Editors"},
		nil,
		[]GrantInput{{ResourceID: 7}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGroup(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM groups_users").
		WithArgs(int64(3), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO groups_users").
		WithArgs(int64(3), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO groups_resources").
		WithArgs(int64(3), int64(5), true, false, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE groups_resources").
		WithArgs(false, true, true, int64(3), int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM groups_resources").
		WithArgs(int64(3), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE groups SET").
		WithArgs("Editors", "renamed", false, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.UpdateGroup(context.Background(),
		&Group{ID: 3, Name: "Editors", Description: "renamed"},
		[]int64{4}, []int64{9},
		[]GrantInput{{ResourceID: 5, Write: true}},
		[]GrantInput{{ResourceID: 6, Update: true, Delete: true}},
		[]int64{7})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGroup_RollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO groups_users").
		WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	err := s.UpdateGroup(context.Background(),
		&Group{ID: 3, Name: "Editors"},
		[]int64{4}, nil, nil, nil, nil)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteGroup(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM groups_users").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM groups_resources").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM groups WHERE").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteGroup(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteGroup_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM groups_users").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM groups_resources").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM groups WHERE").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, s.DeleteGroup(context.Background(), 99), ErrNotFound)
}

func TestListGroups_BlockedFilter(t *testing.T) {
	s, mock := newMockStore(t)

	blocked := false
	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, name, blocked FROM groups").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "blocked"}).
			AddRow(int64(1), "Editors", false))

	groups, total, err := s.ListGroups(context.Background(), GroupFilter{Blocked: &blocked, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, groups, 1)
	assert.Equal(t, "Editors", groups[0].Name)
}

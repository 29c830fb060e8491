//go:build integration
// +build integration

package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/dqo"
)

func TestMySQL_Keys(t *testing.T) {
	ds := SetupMySQLTestDB(t)
	defer ds.Close()
	ctx := context.Background()

	db := ds.Open(t)
	assert.True(t, db.Dialect().Is(dqo.MySQL))
	_, err := dqo.Diff(ctx, db)
	assert.ErrorIs(t, err, dqo.ErrUnsupportedDialect)

	execAll(t, db,
		"drop table if exists messages",
		`create table messages (
			id int auto_increment primary key,
			mailbox_id int not null,
			subject text,
			created_at timestamp default current_timestamp
		)`,
	)
	messages := dqo.MustDefine("Messages",
		dqo.Col("id", dqo.NewColumn(dqo.Int, dqo.PrimaryKey())),
		dqo.Col("mailbox_id", dqo.NewColumn(dqo.Int, dqo.NotNull())),
		dqo.Col("subject", dqo.NewColumn(dqo.String)),
		dqo.Col("created_at", dqo.NewColumn(dqo.DateTime)),
		dqo.BindDB(db),
	)

	t.Run("insert", func(t *testing.T) {
		key, err := messages.All().Insert(ctx, dqo.Values{"mailbox_id": 1, "subject": "hello"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), key)
	})

	t.Run("insert many", func(t *testing.T) {
		keys, err := messages.All().InsertMany(ctx, []dqo.Values{
			{"mailbox_id": 1, "subject": "a"},
			{"mailbox_id": 2, "subject": "b"},
			{"mailbox_id": 2, "subject": "c"},
		})
		require.NoError(t, err)
		assert.Equal(t, []interface{}{int64(2), int64(3), int64(4)}, keys)
	})

	t.Run("row", func(t *testing.T) {
		row, err := messages.All().WhereEq(dqo.Values{"id": 4}).First(ctx)
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.NotNil(t, row.Get("created_at"))

		row.Set("subject", "changed")
		require.NoError(t, row.Save(ctx))

		n, err := messages.All().Where(messages.C("subject").Eq("changed")).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("count by", func(t *testing.T) {
		counts, err := messages.All().CountBy(ctx, messages.C("mailbox_id"))
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts.Get(1))
		assert.Equal(t, int64(2), counts.Get(2))
	})

	t.Run("update and delete", func(t *testing.T) {
		n, err := messages.All().
			Set(dqo.Values{"mailbox_id": 3}).
			Where(messages.C("id").In(1, 2)).
			Update(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = messages.All().WhereEq(dqo.Values{"mailbox_id": 3}).Delete(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

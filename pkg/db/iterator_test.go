package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeekToLast(t *testing.T) {
	tests := []struct {
		name   string
		keys   []string
		prefix string
		// want is the raw key the cursor lands on; valid tells whether it
		// lies under the prefix
		want  string
		valid bool
	}{
		{name: "prefix_with_followers", keys: []string{"ba", "bb", "cc"}, prefix: "bb", want: "bb", valid: true},
		{name: "longest_key_under_prefix", keys: []string{"a", "bb", "bb\x00", "bbz", "c"}, prefix: "bb", want: "bbz", valid: true},
		{name: "nothing_after_prefix", keys: []string{"a", "ab", "abc"}, prefix: "a", want: "abc", valid: true},
		{name: "trailing_ff", keys: []string{"b\xff\x01", "b\xff\xff", "c"}, prefix: "b\xff", want: "b\xff\xff", valid: true},
		{name: "empty_scope", keys: []string{"a", "c"}, prefix: "b", want: "a", valid: false},
		{name: "all_ff_falls_back_to_last", keys: []string{"a", "z", "\xfe"}, prefix: "\xff\xff\xff", want: "\xfe", valid: false},
		{name: "all_ff_with_keys", keys: []string{"a", "\xff\xff\xff", "\xff\xff\xff\x01"}, prefix: "\xff\xff\xff", want: "\xff\xff\xff\x01", valid: true},
		{name: "no_prefix", keys: []string{"a", "b"}, prefix: "", want: "b", valid: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			forEachEngine(t, func(t *testing.T, d *DB) {
				for _, k := range tc.keys {
					mustPut(t, d, k, "v")
				}
				it, err := d.Iterator([]byte(tc.prefix))
				require.NoError(t, err)
				defer it.Close()

				require.NoError(t, it.SeekToLast())
				require.True(t, it.cur.valid(nil))
				assert.Equal(t, tc.want, string(it.cur.Key()))
				assert.Equal(t, tc.valid, it.Valid())
			})
		})
	}
}

func TestIteratorScoping(t *testing.T) {
	forEachEngine(t, func(t *testing.T, d *DB) {
		mustPut(t, d, "a", "0", "ab1", "1", "ab2", "2", "ac", "3")

		it, err := d.Scope([]byte("a")).Iterator([]byte("b"))
		require.NoError(t, err)
		defer it.Close()
		assert.Equal(t, []byte("ab"), it.Prefix())

		require.NoError(t, it.SeekToFirst())
		require.True(t, it.Valid())
		assert.Equal(t, "1", string(it.Key()))
		assert.Equal(t, "1", string(it.Value()))

		require.NoError(t, it.Next())
		assert.Equal(t, "2", string(it.Key()))
		require.NoError(t, it.Next())
		assert.False(t, it.Valid(), "ac is outside the scope")

		require.NoError(t, it.Seek([]byte("2")))
		assert.Equal(t, "2", string(it.Key()))
		require.NoError(t, it.Prev())
		assert.Equal(t, "1", string(it.Key()))
		require.NoError(t, it.Prev())
		assert.False(t, it.Valid())

		require.NoError(t, it.Seek([]byte("3")))
		assert.False(t, it.Valid())
	})
}

func TestIteratorInvalidAccessPanics(t *testing.T) {
	forEachEngine(t, func(t *testing.T, d *DB) {
		mustPut(t, d, "a", "1")
		it, err := d.Iterator([]byte("z"))
		require.NoError(t, err)

		assert.False(t, it.Valid())
		assert.PanicsWithError(t, ErrInvalidIteratorState.Error(), func() { it.Key() })
		assert.PanicsWithError(t, ErrInvalidIteratorState.Error(), func() { it.Value() })

		// positioned on "a", which is outside the scope
		require.NoError(t, it.SeekToLast())
		assert.False(t, it.Valid())
		assert.PanicsWithError(t, ErrInvalidIteratorState.Error(), func() { it.Key() })

		require.NoError(t, it.Close())
		assert.False(t, it.Valid())
		assert.PanicsWithError(t, ErrInvalidIteratorState.Error(), func() { it.Value() })
		assert.ErrorIs(t, it.Next(), ErrClosed)
	})
}

func TestRange(t *testing.T) {
	keys := []string{"aa", "bb", "cc", "dd", "ee"}
	tests := []struct {
		name   string
		bounds Bounds
		want   []string
	}{
		{name: "all", bounds: Bounds{}, want: keys},
		{name: "exclusive_start_inclusive_end", bounds: Bounds{Start: []byte("bb"), End: []byte("cc"), StartExclusive: true, EndInclusive: true}, want: []string{"cc"}},
		{name: "inclusive_start_exclusive_end", bounds: Bounds{Start: []byte("bb"), End: []byte("dd")}, want: []string{"bb", "cc"}},
		{name: "start_between_keys", bounds: Bounds{Start: []byte("b"), StartExclusive: true}, want: []string{"bb", "cc", "dd", "ee"}},
		{name: "end_between_keys", bounds: Bounds{End: []byte("c"), EndInclusive: true}, want: []string{"aa", "bb"}},
		{name: "empty_when_start_equals_exclusive_end", bounds: Bounds{Start: []byte("cc"), End: []byte("cc")}, want: nil},
		{name: "start_past_end", bounds: Bounds{Start: []byte("zz")}, want: nil},
		{name: "only_end_inclusive", bounds: Bounds{Start: []byte("ee"), End: []byte("ee"), EndInclusive: true}, want: []string{"ee"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			forEachEngine(t, func(t *testing.T, d *DB) {
				for _, k := range keys {
					mustPut(t, d, k, "v"+k)
				}
				it, err := d.Iterator(nil)
				require.NoError(t, err)

				var got []string
				for k, v := range it.Range(tc.bounds) {
					assert.Equal(t, "v"+string(k), string(v))
					got = append(got, string(k))
				}
				require.NoError(t, it.Err())
				assert.Equal(t, tc.want, got)
			})
		})
	}
}

func TestRangeIsSingleUse(t *testing.T) {
	forEachEngine(t, func(t *testing.T, d *DB) {
		mustPut(t, d, "a", "1", "b", "2", "c", "3")

		it, err := d.Iterator(nil)
		require.NoError(t, err)
		assert.Equal(t, 1, countKind(d, "iterator"))

		for k := range it.Range(Bounds{}) {
			assert.Equal(t, "a", string(k))
			break
		}
		// abandoning the loop released the cursor
		assert.Equal(t, 0, countKind(d, "iterator"))
		assert.False(t, it.Valid())

		var again []string
		for _, v := range it.All() {
			again = append(again, string(v))
		}
		assert.Empty(t, again)
		assert.ErrorIs(t, it.Err(), ErrClosed)
	})
}

func TestIteratorPointInTime(t *testing.T) {
	forEachEngine(t, func(t *testing.T, d *DB) {
		mustPut(t, d, "a", "1", "b", "2")
		it, err := d.Iterator(nil)
		require.NoError(t, err)

		mustPut(t, d, "c", "3", "a", "changed")
		require.NoError(t, d.Delete([]byte("b")))

		var got []string
		for k, v := range it.All() {
			got = append(got, string(k)+"="+string(v))
		}
		require.NoError(t, it.Err())
		assert.Equal(t, []string{"a=1", "b=2"}, got)
	})
}

func TestConcurrentIterators(t *testing.T) {
	forEachEngine(t, func(t *testing.T, d *DB) {
		mustPut(t, d, "a", "1", "b", "2", "c", "3", "d", "4")

		first, err := d.Iterator(nil)
		require.NoError(t, err)
		defer first.Close()
		second, err := d.Iterator(nil)
		require.NoError(t, err)
		defer second.Close()

		require.NoError(t, first.SeekToFirst())
		require.NoError(t, second.SeekToLast())
		for _, want := range [][2]string{{"a", "d"}, {"b", "c"}, {"c", "b"}, {"d", "a"}} {
			require.True(t, first.Valid())
			require.True(t, second.Valid())
			assert.Equal(t, want[0], string(first.Key()))
			assert.Equal(t, want[1], string(second.Key()))
			require.NoError(t, first.Next())
			require.NoError(t, second.Prev())
		}
		assert.False(t, first.Valid())
		assert.False(t, second.Valid())
	})
}

func TestKeysValuesFromPosition(t *testing.T) {
	forEachEngine(t, func(t *testing.T, d *DB) {
		mustPut(t, d, "pa", "1", "pb", "2", "pc", "3", "q", "4")
		it, err := d.Iterator([]byte("p"))
		require.NoError(t, err)
		defer it.Close()

		// unpositioned
		for range it.Keys() {
			t.Fatal("an unpositioned iterator yields nothing")
		}

		require.NoError(t, it.Seek([]byte("b")))
		var keys []string
		for k := range it.Keys() {
			keys = append(keys, string(k))
		}
		require.NoError(t, it.Err())
		assert.Equal(t, []string{"b", "c"}, keys)
		assert.False(t, it.Valid())

		// the iterator stays open and can be positioned again
		require.NoError(t, it.SeekToFirst())
		var values []string
		for v := range it.Values() {
			values = append(values, string(v))
			if len(values) == 2 {
				break
			}
		}
		assert.Equal(t, []string{"1", "2"}, values)
		require.True(t, it.Valid())
		assert.Equal(t, "b", string(it.Key()))
		assert.Equal(t, 1, countKind(d, "iterator"))
	})
}

package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := Sum([]byte("hello")); got != want {
		t.Errorf("Sum = %s, want %s", got, want)
	}
}

func TestJSON_ChangesWithContent(t *testing.T) {
	a, _ := JSON(map[string]string{"name": "Ann"})
	b, _ := JSON(map[string]string{"name": "Ben"})
	if a == b {
		t.Error("different values produced the same digest")
	}
	if _, err := JSON(func() {}); err == nil {
		t.Error("expected an error for an unencodable value")
	}
}

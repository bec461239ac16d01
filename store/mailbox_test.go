package store

import "testing"

func TestMailboxPath(t *testing.T) {
	t.Run("structural equality", func(t *testing.T) {
		a := UserPath("benwa", "INBOX")
		b := NewPath(NamespacePersonal, "benwa", "INBOX")
		if a != b {
			t.Errorf("expected %v == %v", a, b)
		}
		if a == UserPath("bob", "INBOX") {
			t.Error("paths of different users must differ")
		}
		if a == NewPath("#private_bob", "benwa", "INBOX") {
			t.Error("paths of different namespaces must differ")
		}
	})

	t.Run("child", func(t *testing.T) {
		child := UserPath("benwa", "INBOX").Child("work", '.')
		if child.Name != "INBOX.work" {
			t.Errorf("unexpected child name %q", child.Name)
		}
		if !child.SameTenant(UserPath("benwa", "other")) {
			t.Error("child should stay in the parent's tenant")
		}
	})
}

func TestMailboxID(t *testing.T) {
	var zero MailboxID
	if !zero.IsZero() {
		t.Error("zero id should report IsZero")
	}
	if MailboxID("abc").IsZero() {
		t.Error("assigned id should not report IsZero")
	}
}

func TestNewMailbox(t *testing.T) {
	m := NewMailbox(UserPath("benwa", "INBOX"), 42)
	if !m.ID.IsZero() {
		t.Error("new mailbox must start without an id")
	}
	if m.UIDValidity != 42 {
		t.Errorf("uid validity not carried: %d", m.UIDValidity)
	}
}

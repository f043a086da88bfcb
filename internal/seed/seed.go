package seed

import (
	"fmt"
	"log"

	"parley/internal/models"

	"gorm.io/gorm"
)

// Run populates the database with demo accounts, conversations and rooms.
func Run(db *gorm.DB, opts SeedOptions) error {
	if opts.NumUsers <= 0 {
		opts.NumUsers = 20
	}
	if opts.NumConversations <= 0 {
		opts.NumConversations = 15
	}
	if opts.NumRooms <= 0 {
		opts.NumRooms = 6
	}

	log.Printf("🌱 Seeding %d users, %d conversations, %d rooms...",
		opts.NumUsers, opts.NumConversations, opts.NumRooms)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("⚠️  Warning: could not clear all existing data, continuing anyway...")
		}
	}

	f := NewFactory(db, opts)

	users, err := createUsers(f, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("✓ %d users created", len(users))

	registered := make([]*models.User, 0, len(users))
	for _, u := range users {
		if !u.IsGuest() && !u.Role.Elevated() && u.Role != models.RoleBanned {
			registered = append(registered, u)
		}
	}

	if err := createFriendships(f, registered); err != nil {
		return fmt.Errorf("failed to create friendships: %w", err)
	}
	log.Println("✓ friendship mesh created")

	convCount, err := createConversations(f, registered, opts.NumConversations)
	if err != nil {
		return fmt.Errorf("failed to create conversations: %w", err)
	}
	log.Printf("✓ %d conversations created", convCount)

	roomCount, err := createRooms(f, registered, opts.NumRooms)
	if err != nil {
		return fmt.Errorf("failed to create rooms: %w", err)
	}
	log.Printf("✓ %d rooms created", roomCount)

	log.Println("🎉 Database seeding completed successfully!")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	if db.Dialector.Name() == "postgres" {
		sql := `TRUNCATE TABLE reactions, room_messages, room_memberships, rooms,
			messages, conversations, friendships, bans, media_assets, users
			RESTART IDENTITY CASCADE;`
		return db.Exec(sql).Error
	}
	// Table-by-table fallback for non-postgres databases, children first.
	for _, table := range []string{
		"reactions", "room_messages", "room_memberships", "rooms",
		"messages", "conversations", "friendships", "bans", "media_assets", "users",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}

// createUsers seeds a handful of fixed accounts for predictable dev logins,
// then fills out the rest with generated ones.
func createUsers(f *Factory, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)

	fixtures := []struct {
		username string
		role     models.Role
	}{
		{"frank", models.RoleClient},
		{"greta", models.RoleFreelancer},
		{"mira", models.RoleModerator},
	}
	for _, fix := range fixtures {
		email := fix.username + "@parley.local"
		user, err := f.CreateUser(func(u *models.User) {
			u.Username = fix.username
			u.DisplayName = fix.username
			u.Email = &email
			u.Role = fix.role
		})
		if err != nil {
			// Fixtures may already exist when reseeding without clean.
			log.Printf("fixture user %s skipped: %v", fix.username, err)
			continue
		}
		users = append(users, user)
	}

	for i := len(users); i < count; i++ {
		var (
			user *models.User
			err  error
		)
		if f.rand.Float32() < 0.15 {
			user, err = f.CreateGuest()
		} else {
			user, err = f.CreateUser()
		}
		if err != nil {
			log.Printf("failed to create user: %v", err)
			continue
		}
		users = append(users, user)

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d users...", i)
		}
	}

	return users, nil
}

// createFriendships builds a sparse mesh over the registered users: mostly
// accepted pairs with some pending requests and the odd block.
func createFriendships(f *Factory, users []*models.User) error {
	for i := 0; i < len(users); i++ {
		for j := i + 1; j < len(users); j++ {
			roll := f.rand.Float32()
			switch {
			case roll < 0.12:
				if err := f.CreateFriendship(users[i], users[j], models.FriendshipStatusAccepted); err != nil {
					return err
				}
			case roll < 0.18:
				if err := f.CreateFriendship(users[i], users[j], models.FriendshipStatusPending); err != nil {
					return err
				}
			case roll < 0.20:
				if err := f.CreateFriendship(users[i], users[j], models.FriendshipStatusBlocked); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func createConversations(f *Factory, users []*models.User, count int) (int, error) {
	if len(users) < 2 {
		return 0, nil
	}

	created := 0
	seen := make(map[[2]uint]bool)
	for i := 0; i < count*3 && created < count; i++ {
		x := users[f.rand.Intn(len(users))]
		y := users[f.rand.Intn(len(users))]
		if x.ID == y.ID {
			continue
		}
		a, b := models.CanonicalPair(x.ID, y.ID)
		key := [2]uint{a, b}
		if seen[key] {
			continue
		}
		seen[key] = true

		conv, err := f.CreateConversation(x, y)
		if err != nil {
			return created, err
		}
		created++

		numMessages := f.rand.Intn(20) + 3
		for m := 0; m < numMessages; m++ {
			sender := x
			if f.rand.Float32() < 0.5 {
				sender = y
			}
			msg, err := f.CreateMessage(conv, sender)
			if err != nil {
				return created, err
			}
			if f.rand.Float32() < 0.15 {
				reactor := conv.PeerOf(sender.ID)
				other := x
				if other.ID != reactor {
					other = y
				}
				if err := f.CreateReaction(models.MessageKindDirect, msg.ID, other); err != nil {
					return created, err
				}
			}
		}
	}
	return created, nil
}

func createRooms(f *Factory, users []*models.User, count int) (int, error) {
	if len(users) == 0 {
		return 0, nil
	}

	created := 0
	for i := 0; i < count; i++ {
		creator := users[f.rand.Intn(len(users))]

		room, err := f.CreateRoom(creator, func(r *models.Room) {
			// A couple of non-active rooms so list views show variety.
			if i > 0 && f.rand.Float32() < 0.2 {
				r.Status = models.RoomStatusCompleted
			}
		})
		if err != nil {
			return created, err
		}
		created++

		members := []*models.User{creator}
		numMembers := f.rand.Intn(4) + 1
		for m := 0; m < numMembers; m++ {
			candidate := users[f.rand.Intn(len(users))]
			joined := false
			for _, existing := range members {
				if existing.ID == candidate.ID {
					joined = true
					break
				}
			}
			if joined {
				continue
			}
			if err := f.AddMember(room, candidate); err != nil {
				return created, err
			}
			members = append(members, candidate)
		}

		numMessages := f.rand.Intn(25) + 5
		for m := 0; m < numMessages; m++ {
			sender := members[f.rand.Intn(len(members))]
			msg, err := f.CreateRoomMessage(room, sender, func(rm *models.RoomMessage) {
				// Occasional secret side-message between two members.
				if len(members) > 1 && f.rand.Float32() < 0.1 {
					recipient := members[f.rand.Intn(len(members))]
					if recipient.ID != sender.ID {
						rm.RecipientID = &recipient.ID
					}
				}
			})
			if err != nil {
				return created, err
			}
			if msg.RecipientID == nil && f.rand.Float32() < 0.15 {
				reactor := members[f.rand.Intn(len(members))]
				if err := f.CreateReaction(models.MessageKindRoom, msg.ID, reactor); err != nil {
					return created, err
				}
			}
		}
	}
	return created, nil
}

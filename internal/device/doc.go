// Package device defines the device catalogue for the infoscreen bridge.
//
// A device is any signage endpoint the bridge knows about: a Linux
// signage client speaking MQTT directly, or an Android tablet running
// Fully Kiosk Browser behind the relay. The "fully-" identifier prefix
// decides the family; ParseRef resolves it once and the rest of the
// system works with the resulting Ref.
//
// # Key Types
//
//   - Device: The catalogue entry with identity and approval state
//   - Ref: A parsed identifier carrying the management family
//   - Status: Last reported connectivity state (online/offline/unknown)
//   - Update: A partial update where absent fields never erase values
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//
//	dev, err := repo.GetByID(ctx, "fully-a1b2c3")
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // first contact, create a pending record
//	}
//
//	dev.Merge(device.Update{Status: &online, IP: &ip})
//	if err := repo.Update(ctx, dev); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use; it holds no state beyond
// the *sql.DB handle.
package device
